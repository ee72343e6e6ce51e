package dataset

import (
	"errors"
	"fmt"
	"os"
)

// DefaultLabelColumn is the label column required when none is configured
const DefaultLabelColumn = "label"

// DefaultHeadRows is the number of rows SampleHead returns by default
const DefaultHeadRows = 5

var (
	// ErrNotFound is returned when the CSV path does not exist
	ErrNotFound = errors.New("file not found")
	// ErrMissingLabel is returned when a CSV lacks the label column
	ErrMissingLabel = errors.New("missing required label column")
)

// LoadCSV reads a CSV file and verifies it carries the label column.
// An empty labelColumn means DefaultLabelColumn.
func LoadCSV(path, labelColumn string) (*Frame, error) {
	if labelColumn == "" {
		labelColumn = DefaultLabelColumn
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if !frame.HasColumn(labelColumn) {
		return nil, fmt.Errorf("%w %q in %s", ErrMissingLabel, labelColumn, path)
	}

	return frame, nil
}

// LoadMultipleCSVs loads each file and concatenates them in order.
// Rows are not de-duplicated across files.
func LoadMultipleCSVs(paths []string, labelColumn string) (*Frame, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV paths given")
	}

	frames := make([]*Frame, 0, len(paths))
	for _, p := range paths {
		frame, err := LoadCSV(p, labelColumn)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return Concat(frames...), nil
}

// SampleHead returns the first n rows, DefaultHeadRows when n <= 0
func SampleHead(frame *Frame, n int) *Frame {
	if n <= 0 {
		n = DefaultHeadRows
	}
	return frame.Head(n)
}
