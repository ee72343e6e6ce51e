package mlmodel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/preprocess"
)

// Predictor is the read-only serving state: a model bundle and the
// preprocessing it expects. It is built once at startup and never reloaded.
type Predictor struct {
	bundle      *ModelBundle
	transformer *preprocess.Transformer
}

// LoadPredictor loads the serving bundle and transformer from disk
func LoadPredictor(modelPath, transformerPath string) (*Predictor, error) {
	bundle, err := LoadBundle(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	transformer, err := preprocess.LoadTransformer(transformerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load transformer: %w", err)
	}
	return NewPredictor(bundle, transformer)
}

// NewPredictor pairs a bundle with a transformer, rejecting a pair whose
// feature columns disagree
func NewPredictor(bundle *ModelBundle, transformer *preprocess.Transformer) (*Predictor, error) {
	if len(bundle.FeatureColumns) != len(transformer.FeatureColumns) {
		return nil, fmt.Errorf("model expects %d features, transformer produces %d",
			len(bundle.FeatureColumns), len(transformer.FeatureColumns))
	}
	for i, name := range bundle.FeatureColumns {
		if transformer.FeatureColumns[i] != name {
			return nil, fmt.Errorf("feature %d mismatch: model expects %q, transformer produces %q",
				i, name, transformer.FeatureColumns[i])
		}
	}
	return &Predictor{bundle: bundle, transformer: transformer}, nil
}

// Prediction is the label for one record and the probability the model
// assigned to it
type Prediction struct {
	Label      string
	Confidence float64
}

// Predict classifies one flat JSON record
func (p *Predictor) Predict(record map[string]interface{}) (Prediction, error) {
	x, err := p.transformer.TransformRecord(record)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := p.bundle.Model.PredictProba([][]float64{x})
	if err != nil {
		return Prediction{}, fmt.Errorf("prediction failed: %w", err)
	}
	classes := p.bundle.Model.Classes()
	if len(proba[0]) == 0 || len(proba[0]) != len(classes) {
		return Prediction{}, fmt.Errorf("prediction failed: %d probabilities for %d classes", len(proba[0]), len(classes))
	}
	best := floats.MaxIdx(proba[0])
	return Prediction{Label: classes[best], Confidence: proba[0][best]}, nil
}

// Algorithm returns the model type being served
func (p *Predictor) Algorithm() models.ModelType {
	return p.bundle.Algorithm
}

// Classes returns the labels the model can emit
func (p *Predictor) Classes() []string {
	return p.bundle.Classes
}

// FeatureColumns returns the fields a record must carry
func (p *Predictor) FeatureColumns() []string {
	return p.bundle.FeatureColumns
}

// RunID returns the training run that produced the model
func (p *Predictor) RunID() string {
	return p.bundle.RunID
}
