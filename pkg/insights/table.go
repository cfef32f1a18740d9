// Package insights builds the read-only views of the dashboard: per-resource
// listings and the composite business insights page.
package insights

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotList is returned when a listing endpoint does not answer with a JSON array.
var ErrNotList = errors.New("insights: response is not a list")

// Table is a list of JSON objects with columns in first-seen key order.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Cell renders the value of column col in row i.
func (t Table) Cell(i int, col string) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return formatCell(t.Rows[i][col])
}

// DecodeTable parses a JSON array of objects keeping the server's key order.
func DecodeTable(raw []byte) (Table, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("decode table: %w", err)
	}
	if tok == nil {
		return Table{}, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return Table{}, ErrNotList
	}

	var table Table
	seen := make(map[string]bool)
	for dec.More() {
		keys, row, err := decodeObject(dec)
		if err != nil {
			return Table{}, fmt.Errorf("decode row %d: %w", len(table.Rows), err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				table.Columns = append(table.Columns, k)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return Table{}, fmt.Errorf("decode table: %w", err)
	}
	return table, nil
}

func decodeObject(dec *json.Decoder) ([]string, map[string]any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	row := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, row, nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSpace(string(b))
	}
}
