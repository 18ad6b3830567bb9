// Package obligations reads obligation registers from CSV, JSON or YAML.
package obligations

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// Format is an obligation register encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnsupportedFormat = errors.New("unsupported obligation format")

// CSV header names. Matching ignores case and surrounding space.
const (
	colID        = "obligation_id"
	colText      = "obligation"
	colFramework = "framework_source"
	colClause    = "clause_source"
	colDomain    = "domains"
	colImpact    = "impact"
)

var requiredColumns = []string{colID, colText, colFramework, colClause}

// FormatFor infers the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads and validates the obligations in path.
func Load(path string) ([]contracts.Obligation, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: path is operator-supplied input
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obligations: %w", err)
	}
	defer func() { _ = f.Close() }()

	obligations, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obligations, nil
}

// Parse decodes obligations from r. Records are returned in input order;
// every record is validated and IDs must be unique.
func Parse(r io.Reader, format Format) ([]contracts.Obligation, error) {
	var (
		obligations []contracts.Obligation
		err         error
	)
	switch format {
	case FormatCSV:
		obligations, err = parseCSV(r)
	case FormatJSON:
		obligations, err = parseJSON(r)
	case FormatYAML:
		obligations, err = parseYAML(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(obligations))
	for i := range obligations {
		o := &obligations[i]
		trim(o)
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		if prev, dup := seen[o.ObligationID]; dup {
			return nil, fmt.Errorf("record %d: duplicate obligation id %q (first at record %d)", i+1, o.ObligationID, prev)
		}
		seen[o.ObligationID] = i + 1
	}
	return obligations, nil
}

func trim(o *contracts.Obligation) {
	o.ObligationID = strings.TrimSpace(o.ObligationID)
	o.Text = strings.TrimSpace(o.Text)
	o.FrameworkSource = strings.TrimSpace(o.FrameworkSource)
	o.ClauseSource = strings.TrimSpace(o.ClauseSource)
	o.Domain = strings.TrimSpace(o.Domain)
	o.Impact = strings.TrimSpace(o.Impact)
}

func parseCSV(r io.Reader) ([]contracts.Obligation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("csv is missing column %q", c)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []contracts.Obligation
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blank(row) {
			continue
		}
		out = append(out, contracts.Obligation{
			ObligationID:    cell(row, colID),
			Text:            cell(row, colText),
			FrameworkSource: cell(row, colFramework),
			ClauseSource:    cell(row, colClause),
			Domain:          cell(row, colDomain),
			Impact:          cell(row, colImpact),
		})
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type envelope struct {
	Obligations []contracts.Obligation `json:"obligations" yaml:"obligations"`
}

func parseJSON(r io.Reader) ([]contracts.Obligation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []contracts.Obligation
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return list, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return env.Obligations, nil
}

func parseYAML(r io.Reader) ([]contracts.Obligation, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.SequenceNode {
		var list []contracts.Obligation
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return list, nil
	}
	var env envelope
	if err := root.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return env.Obligations, nil
}
