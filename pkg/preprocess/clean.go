package preprocess

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

// MissingCategory fills categorical columns that have no observed value
const MissingCategory = "unknown"

// Clean drops duplicate rows and imputes missing cells: numeric columns
// with their median, categorical columns with their most frequent value.
// Duplicates created by imputation are dropped too, so Clean is idempotent.
// The input frame is not modified.
func Clean(frame *dataset.Frame) *dataset.Frame {
	out := frame.DropDuplicates()
	for _, col := range out.Columns() {
		if col.Kind == dataset.Numeric {
			median, ok := Median(col.Numbers)
			if !ok {
				median = 0
			}
			fillNumeric(col, median)
			continue
		}
		mode, ok := Mode(col.Strings)
		if !ok {
			mode = MissingCategory
		}
		for i, v := range col.Strings {
			if v == "" {
				col.Strings[i] = mode
			}
		}
	}
	return out.DropDuplicates()
}

// Median returns the median of the non-NaN values; ok is false when there are none
func Median(values []float64) (float64, bool) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	median, err := stats.Median(present)
	if err != nil {
		return math.NaN(), false
	}
	return median, true
}

// Mode returns the most frequent non-empty value, breaking ties by the
// lexicographically smallest; ok is false when every value is empty
func Mode(values []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}

func fillNumeric(col *dataset.Column, value float64) {
	for i, v := range col.Numbers {
		if math.IsNaN(v) {
			col.Numbers[i] = value
		}
	}
}
