package features

import (
	"sort"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

// OneHotEncode replaces each named column with one 0/1 indicator column per
// observed value, named <column>_<value> and appended in sorted value order.
// Missing cells become all-zero rows. Names absent from frame are skipped.
func OneHotEncode(frame *dataset.Frame, columns []string) *dataset.Frame {
	out := frame.Clone()
	for _, name := range columns {
		col, ok := out.Column(name)
		if !ok {
			continue
		}

		cells := make([]string, col.Len())
		seen := make(map[string]struct{})
		for i := range cells {
			if col.IsMissing(i) {
				continue
			}
			cells[i] = col.Cell(i)
			seen[cells[i]] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)

		out.Drop(name)
		for _, v := range values {
			indicator := make([]float64, len(cells))
			for i, c := range cells {
				if c == v {
					indicator[i] = 1
				}
			}
			out.AddNumeric(name+"_"+v, indicator)
		}
	}
	return out
}
