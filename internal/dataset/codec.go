package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/khukmani/bettervisuals/internal/shared"
)

// TimeLayout is the ISO-8601 format used for time cells in encoded artifacts.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// splitPayload is the on-disk artifact layout: column names, a 0-based row
// index, and row-major cell data.
type splitPayload struct {
	Columns []string `json:"columns"`
	Index   []int    `json:"index"`
	Data    [][]any  `json:"data"`
}

// EncodeSplit serializes the frame as a split-orient JSON document.
func (f *Frame) EncodeSplit() ([]byte, error) {
	payload := splitPayload{
		Columns: f.ColumnNames(),
		Index:   make([]int, len(f.rows)),
		Data:    make([][]any, len(f.rows)),
	}

	for i, row := range f.rows {
		payload.Index[i] = i
		encoded := make([]any, len(row))
		for j, v := range row {
			cell, err := encodeCell(v, f.columns[j].Kind)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, f.columns[j].Name, err)
			}
			encoded[j] = cell
		}
		payload.Data[i] = encoded
	}

	return json.Marshal(payload)
}

func encodeCell(v any, kind Kind) (any, error) {
	switch kind {
	case Time:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time, got %T", v)
		}
		return t.UTC().Format(TimeLayout), nil
	case Float:
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected float, got %T", v)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("value %v is not encodable", n)
		}
		return n, nil
	default:
		return v, nil
	}
}

// DecodeSplit parses a split-orient JSON document against the declared
// schema. Column order and names must match the schema exactly.
func DecodeSplit(data []byte, schema []Column) (*Frame, error) {
	var payload splitPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
	}

	if len(payload.Columns) != len(schema) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", shared.ErrMalformedInput, len(schema), len(payload.Columns))
	}
	for i, name := range payload.Columns {
		if name != schema[i].Name {
			return nil, fmt.Errorf("%w: expected column %q at position %d, got %q", shared.ErrMalformedInput, schema[i].Name, i, name)
		}
	}

	frame := New(schema...)
	for i, row := range payload.Data {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", shared.ErrMalformedInput, i, len(row), len(schema))
		}

		values := make([]any, len(row))
		for j, raw := range row {
			v, err := decodeCell(raw, schema[j].Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", shared.ErrMalformedInput, i, schema[j].Name, err)
			}
			values[j] = v
		}

		if err := frame.Append(values...); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
		}
	}

	return frame, nil
}

func decodeCell(raw any, kind Kind) (any, error) {
	switch kind {
	case String:
		if raw == nil {
			return "", nil
		}
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case Float:
		if raw == nil {
			return float64(0), nil
		}
		if n, ok := raw.(float64); ok {
			return n, nil
		}
	case Int:
		if raw == nil {
			return 0, nil
		}
		if n, ok := raw.(float64); ok {
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("value %v is not an integer", n)
			}
			return int(n), nil
		}
	case Bool:
		if raw == nil {
			return false, nil
		}
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case Time:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected time string, got %T", raw)
		}
		if t, err := time.Parse(TimeLayout, s); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("unparseable time %q", s)
		}
		return t.UTC(), nil
	case StringList:
		if raw == nil {
			return []string{}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", raw)
		}
		list := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			list[i] = s
		}
		return list, nil
	}
	return nil, fmt.Errorf("value %v (%T) does not match kind %s", raw, raw, kind)
}

// SplitColumns reads just the column names of a split-orient document, for
// artifacts whose schema is data-dependent.
func SplitColumns(data []byte) ([]string, error) {
	var payload struct {
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
	}
	return payload.Columns, nil
}

// EncodeStrings serializes a plain string list artifact (e.g. the year labels).
func EncodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

// DecodeStrings parses a plain string list artifact.
func DecodeStrings(data []byte) ([]string, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
	}
	return values, nil
}
