package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

// DefaultTopK is the number of columns kept by variance selection
const DefaultTopK = 50

// ColumnVariance is the sample variance of one numeric column
type ColumnVariance struct {
	Name     string
	Variance float64
}

// Variances returns the sample variance of every numeric column in frame
// order, ignoring missing cells. Columns with fewer than two values get NaN.
func Variances(frame *dataset.Frame) []ColumnVariance {
	var out []ColumnVariance
	for _, col := range frame.Columns() {
		if col.Kind != dataset.Numeric {
			continue
		}
		present := make([]float64, 0, len(col.Numbers))
		for _, v := range col.Numbers {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		variance := math.NaN()
		if len(present) > 1 {
			variance = stat.Variance(present, nil)
		}
		out = append(out, ColumnVariance{Name: col.Name, Variance: variance})
	}
	return out
}

// SelectTopKByVariance returns up to k numeric column names ordered by
// descending variance. Ties keep frame order and undefined variances sort last.
func SelectTopKByVariance(frame *dataset.Frame, k int) []string {
	if k <= 0 {
		return []string{}
	}
	ranked := Variances(frame)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Variance, ranked[j].Variance
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	names := make([]string, len(ranked))
	for i, cv := range ranked {
		names[i] = cv.Name
	}
	return names
}
