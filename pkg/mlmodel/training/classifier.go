package training

import (
	"encoding/gob"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

// ErrNotFitted is returned when predicting with an untrained model
var ErrNotFitted = errors.New("model not fitted")

// Classifier is a multi-class model over dense float features and string labels
type Classifier interface {
	// Fit trains the model, replacing any previous state
	Fit(X [][]float64, y []string) error

	// Predict returns the most probable class per row
	Predict(X [][]float64) ([]string, error)

	// PredictProba returns per-row probabilities ordered like Classes
	PredictProba(X [][]float64) ([][]float64, error)

	// Classes returns the sorted class labels seen during Fit
	Classes() []string

	// Type returns the algorithm family
	Type() models.ModelType
}

func init() {
	gob.Register(&RandomForestClassifier{})
	gob.Register(&GradientBoostingClassifier{})
}

// encodeLabels returns the sorted class set and each label's index into it
func encodeLabels(y []string) ([]string, []int) {
	seen := make(map[string]struct{})
	for _, label := range y {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]int, len(y))
	for i, label := range y {
		codes[i] = index[label]
	}
	return classes, codes
}

func checkTrainingData(X [][]float64, y []string) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("no training data provided")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("feature rows (%d) and labels (%d) differ", len(X), len(y))
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return 0, fmt.Errorf("training data has no features")
	}
	if err := checkWidth(X, nFeatures); err != nil {
		return 0, err
	}
	return nFeatures, nil
}

func checkWidth(X [][]float64, nFeatures int) error {
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}
	return nil
}

// argmaxLabels maps probability rows to their most likely class; ties pick
// the first class
func argmaxLabels(proba [][]float64, classes []string) []string {
	out := make([]string, len(proba))
	for i, p := range proba {
		out[i] = classes[floats.MaxIdx(p)]
	}
	return out
}
