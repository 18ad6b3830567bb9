package applicability

import "testing"

// FuzzParse checks that arbitrary conditions never panic and that parsed
// conditions always evaluate.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"employee_count < 50",
		"employee_count >= 50 and employee_count < 1000",
		"50 <= employee_count < 1000",
		"not (employee_count >= 1000) || false",
		"",
		"((((",
		"__import__('os').system('id')",
		"employee_count.__class__.__bases__",
		"-----1",
		"1e400 > employee_count",
		"employee_count >= 1_000 # enterprise",
		"1__0 < 1_",
	}
	for _, s := range seeds {
		f.Add(s, 100)
	}

	f.Fuzz(func(t *testing.T, src string, employees int) {
		c, err := Parse(src)
		if err != nil {
			return
		}
		if _, err := c.Eval(map[string]float64{EmployeeCount: float64(employees)}); err != nil {
			t.Errorf("parsed condition %q failed to evaluate: %v", src, err)
		}
	})
}
