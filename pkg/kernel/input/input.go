// Package input reads the record stream a rule file's `input` section
// names — CSV or JSON — into the []map[string]any shape the transform
// package's @input namespace expects. Spec §1 treats CSV/JSON parsing as
// an external collaborator ("only their interfaces are contracted"), so
// this package is a thin stdlib adapter rather than a core component: it
// owns no expression evaluation, validation, or missing-value semantics.
package input

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// Read ingests r per rf.Input and returns the decoded record list.
func Read(rf *schema.RuleFile, r io.Reader) ([]map[string]any, error) {
	switch rf.Input.Format {
	case schema.InputCSV:
		return readCSV(rf.Input.CSV, r)
	case schema.InputJSON:
		return readJSON(rf.Input.JSON, r)
	default:
		return nil, fmt.Errorf("input: unsupported format %q", rf.Input.Format)
	}
}

func readCSV(spec *schema.CSVSpec, r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	delim := ","
	if spec.Delimiter != "" {
		delim = spec.Delimiter
	}
	cr.Comma = rune(delim[0])
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("input: reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var headers []string
	data := rows
	colTypes := map[string]string{}
	for _, c := range spec.Columns {
		colTypes[c.Name] = c.Type
	}

	if spec.HasHeader {
		headers = rows[0]
		data = rows[1:]
	} else {
		for i := range spec.Columns {
			headers = append(headers, spec.Columns[i].Name)
		}
		if len(headers) == 0 {
			for i := range rows[0] {
				headers = append(headers, fmt.Sprintf("col%d", i))
			}
		}
	}

	records := make([]map[string]any, 0, len(data))
	for _, row := range data {
		rec := make(map[string]any, len(headers))
		for i := range row {
			if i >= len(headers) {
				break
			}
			rec[headers[i]] = coerceCSVValue(row[i], colTypes[headers[i]])
		}
		records = append(records, rec)
	}
	return records, nil
}

func coerceCSVValue(raw, typ string) any {
	switch typ {
	case "int":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "float":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "bool":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

func readJSON(spec *schema.JSONSpec, r io.Reader) ([]map[string]any, error) {
	var root any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("input: decoding json: %w", err)
	}
	root = normalizeNumbers(root)

	target := root
	if spec != nil && spec.RecordsPath != "" {
		toks, err := pathlang.Parse(spec.RecordsPath)
		if err != nil {
			return nil, fmt.Errorf("input: invalid records_path: %w", err)
		}
		v, ok := pathlang.Get(root, toks)
		if !ok {
			return nil, fmt.Errorf("input: records_path %q did not resolve", spec.RecordsPath)
		}
		target = v
	}

	switch arr := target.(type) {
	case []any:
		records := make([]map[string]any, 0, len(arr))
		for i, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("input: record %d is not an object", i)
			}
			records = append(records, m)
		}
		return records, nil
	case map[string]any:
		return []map[string]any{arr}, nil
	default:
		return nil, fmt.Errorf("input: root value is neither an array nor an object")
	}
}

// normalizeNumbers replaces json.Number leaves with float64, matching the
// evaluator's JSON-number (IEEE 754 double) semantics from spec §1.
func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			s := n.String()
			return s
		}
		return f
	case map[string]any:
		for k, val := range n {
			n[k] = normalizeNumbers(val)
		}
		return n
	case []any:
		for i, val := range n {
			n[i] = normalizeNumbers(val)
		}
		return n
	default:
		return v
	}
}

// SingleRecord decodes r as one JSON object (no array wrapper), for
// transform_record-style single-record mode.
func SingleRecord(r io.Reader) (map[string]any, error) {
	var root any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("input: decoding json record: %w", err)
	}
	root = normalizeNumbers(root)
	m, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input: record is not an object")
	}
	return m, nil
}

