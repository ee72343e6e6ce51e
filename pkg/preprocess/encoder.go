package preprocess

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
)

// LabelEncoder maps each category to its index in the sorted class list
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

// FitLabelEncoder learns the sorted set of non-empty values
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return newLabelEncoder(classes)
}

func newLabelEncoder(classes []string) *LabelEncoder {
	e := &LabelEncoder{Classes: classes, index: make(map[string]int, len(classes))}
	for i, c := range classes {
		e.index[c] = i
	}
	return e
}

// UnmarshalJSON rebuilds the lookup index after decoding
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw struct {
		Classes []string `json:"classes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = *newLabelEncoder(raw.Classes)
	return nil
}

// Encode returns the code of a single value
func (e *LabelEncoder) Encode(value string) (float64, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, fmt.Errorf("unseen category %q", value)
	}
	return float64(code), nil
}

// Transform encodes every value
func (e *LabelEncoder) Transform(values []string) ([]float64, error) {
	codes := make([]float64, len(values))
	for i, v := range values {
		code, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// InverseTransform maps codes back to categories
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	values := make([]string, len(codes))
	for i, c := range codes {
		idx := int(c)
		if float64(idx) != c || idx < 0 || idx >= len(e.Classes) {
			return nil, fmt.Errorf("invalid code %v", c)
		}
		values[i] = e.Classes[idx]
	}
	return values, nil
}

// EncodeCategorical replaces every categorical column except the excluded
// ones with integer codes, returning the fitted encoder per column
func EncodeCategorical(frame *dataset.Frame, exclude ...string) (map[string]*LabelEncoder, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	encoders := make(map[string]*LabelEncoder)
	for _, name := range frame.Names() {
		col, _ := frame.Column(name)
		if col.Kind != dataset.Categorical || skip[name] {
			continue
		}
		enc := FitLabelEncoder(col.Strings)
		codes, err := enc.Transform(col.Strings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", name, err)
		}
		if err := frame.AddNumeric(name, codes); err != nil {
			return nil, err
		}
		encoders[name] = enc
	}
	return encoders, nil
}
