package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/controlgen/pkg/compliance/applicability"
)

// runEvalConditionCmd implements `controlgen eval-condition`. It prints
// true or false and exits 0, or exits 2 when the condition is rejected.
func runEvalConditionCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("eval-condition", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		expr      string
		employees int
	)
	cmd.StringVar(&expr, "expr", "", "applies_if condition, e.g. \"employee_count < 50\" (REQUIRED)")
	cmd.IntVar(&employees, "employees", 0, "Employee count to evaluate against")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if expr == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --expr is required")
		return 2
	}

	ok, err := applicability.ForEmployees(expr, employees)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, ok)
	return 0
}
