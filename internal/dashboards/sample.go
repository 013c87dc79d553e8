package dashboards

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/khukmani/bettervisuals/internal/dataset"
	"github.com/khukmani/bettervisuals/internal/shared"
)

//go:embed iris.csv
var irisCSV []byte

// SampleSchema is the column layout of the built-in demo dataset.
var SampleSchema = []dataset.Column{
	{Name: "sepal_length", Kind: dataset.Float},
	{Name: "sepal_width", Kind: dataset.Float},
	{Name: "petal_length", Kind: dataset.Float},
	{Name: "petal_width", Kind: dataset.Float},
	{Name: "species", Kind: dataset.String},
}

// SampleFrame parses the embedded demo dataset. The sample dashboard needs no
// account or upload, so this is the only data source it has.
func SampleFrame() (*dataset.Frame, error) {
	records, err := csv.NewReader(bytes.NewReader(irisCSV)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: embedded sample dataset: %v", shared.ErrMalformedInput, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: embedded sample dataset is empty", shared.ErrMalformedInput)
	}

	frame := dataset.New(SampleSchema...)
	for _, record := range records[1:] {
		if len(record) != len(SampleSchema) {
			return nil, fmt.Errorf("%w: sample row has %d fields", shared.ErrMalformedInput, len(record))
		}

		values := make([]any, len(record))
		for i, cell := range record {
			if SampleSchema[i].Kind == dataset.Float {
				n, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: sample value %q: %v", shared.ErrMalformedInput, cell, err)
				}
				values[i] = n
			} else {
				values[i] = cell
			}
		}

		if err := frame.Append(values...); err != nil {
			return nil, fmt.Errorf("sample table: %w", err)
		}
	}

	return frame, nil
}
