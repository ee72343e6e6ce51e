package preprocess

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// Transformer is the fitted preprocessing state applied at serving time.
// Columns with an encoder are categorical, the rest are numeric.
type Transformer struct {
	LabelColumn    string                   `json:"label_column"`
	FeatureColumns []string                 `json:"feature_columns"`
	Encoders       map[string]*LabelEncoder `json:"encoders"`
	Scaler         *StandardScaler          `json:"scaler"`
}

// LoadTransformer reads a transformer saved with Save
func LoadTransformer(path string) (*Transformer, error) {
	var t Transformer
	if err := storage.LoadJSON(path, &t); err != nil {
		return nil, err
	}
	if t.Scaler == nil || len(t.Scaler.Mean) != len(t.FeatureColumns) {
		return nil, fmt.Errorf("transformer %s: scaler does not match %d feature columns", path, len(t.FeatureColumns))
	}
	return &t, nil
}

// Save writes the transformer as JSON
func (t *Transformer) Save(path string) error {
	return storage.SaveJSON(path, t)
}

// TransformRecord turns one flat JSON record into a scaled feature vector.
// Fields outside FeatureColumns are ignored.
func (t *Transformer) TransformRecord(record map[string]interface{}) ([]float64, error) {
	x := make([]float64, len(t.FeatureColumns))
	for j, name := range t.FeatureColumns {
		raw, ok := record[name]
		if !ok || raw == nil {
			return nil, fmt.Errorf("missing field %q", name)
		}

		if enc, categorical := t.Encoders[name]; categorical {
			code, err := enc.Encode(categoryString(raw))
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			x[j] = code
			continue
		}

		v, err := numericValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		x[j] = v
	}
	return t.Scaler.TransformRow(x)
}

// TransformFrame applies the transformer to a raw frame with the training schema
func (t *Transformer) TransformFrame(frame *dataset.Frame) ([][]float64, error) {
	X := make([][]float64, frame.NumRows())
	for i := range X {
		record := make(map[string]interface{}, len(t.FeatureColumns))
		for _, name := range t.FeatureColumns {
			col, ok := frame.Column(name)
			if !ok {
				return nil, fmt.Errorf("missing column %q", name)
			}
			if col.IsMissing(i) {
				continue
			}
			if col.Kind == dataset.Numeric {
				record[name] = col.Numbers[i]
			} else {
				record[name] = col.Strings[i]
			}
		}
		row, err := t.TransformRecord(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		X[i] = row
	}
	return X, nil
}

func categoryString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return dataset.FormatNumber(val)
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(val)
	}
}

func numericValue(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
