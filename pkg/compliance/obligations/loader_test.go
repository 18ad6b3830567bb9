package obligations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registerCSV = "\ufeffObligation_ID,Obligation,Framework_source,Clause_source,Domains,Impact\n" +
	"OBL-GDPR-2,Ensure transparent processing,GDPR (EU) 2016/679,5.1.a,Data protection,Critical\n" +
	",,,,,\n" +
	"OBL-GDPR-30, Maintain records of processing ,GDPR (EU) 2016/679,30,,\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_CSV(t *testing.T) {
	got, err := Load(writeFile(t, "obligations.csv", registerCSV))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "OBL-GDPR-2", got[0].ObligationID)
	assert.Equal(t, "Data protection", got[0].Domain)
	assert.Equal(t, "Critical", got[0].Impact)

	assert.Equal(t, "Maintain records of processing", got[1].Text)
	assert.Empty(t, got[1].Domain)
	assert.Empty(t, got[1].Impact)
}

func TestLoad_CSVColumnOrderAndOptional(t *testing.T) {
	csv := "clause_source,OBLIGATION_ID,framework_source,obligation\n5.1.a,OBL-1,GDPR,Do it\n"
	got, err := Load(writeFile(t, "o.csv", csv))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OBL-1", got[0].ObligationID)
	assert.Equal(t, "5.1.a", got[0].ClauseSource)
}

func TestLoad_CSVMissingColumn(t *testing.T) {
	_, err := Load(writeFile(t, "o.csv", "Obligation_ID,Obligation\nOBL-1,x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "framework_source")
}

func TestLoad_JSON(t *testing.T) {
	list := `[{"obligation_id": "OBL-1", "obligation": "x", "framework_source": "F", "clause_source": "1", "impact": "High"}]`
	got, err := Load(writeFile(t, "o.json", list))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "High", got[0].Impact)

	wrapped := `{"obligations": [{"obligation_id": "OBL-2", "obligation": "y", "framework_source": "F", "clause_source": "2"}]}`
	got, err = Load(writeFile(t, "o.json", wrapped))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OBL-2", got[0].ObligationID)
}

func TestLoad_YAML(t *testing.T) {
	doc := `
obligations:
  - obligation_id: OBL-1
    obligation: Keep records
    framework_source: DORA
    clause_source: "8"
    domain: ICT Risk
`
	got, err := Load(writeFile(t, "o.yaml", doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ICT Risk", got[0].Domain)

	seq := "- obligation_id: OBL-9\n  obligation: z\n  framework_source: F\n  clause_source: c\n"
	got, err = Load(writeFile(t, "o.yml", seq))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]struct {
		format Format
		input  string
	}{
		"missing text":  {FormatJSON, `[{"obligation_id": "OBL-1", "framework_source": "F", "clause_source": "1"}]`},
		"duplicate ids": {FormatCSV, "obligation_id,obligation,framework_source,clause_source\nA,x,F,1\nA,y,F,2\n"},
		"bad json":      {FormatJSON, `{"obligations": [`},
		"unknown":       {Format("xml"), `<obligations/>`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("x/REGISTER.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = FormatFor("x.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse(strings.NewReader(""), FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, got)
}
