package training

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

const (
	boostLambda         = 1.0
	boostMinChildWeight = 1.0
	minHessian          = 1e-16
)

// GradientBoostingClassifier is an XGBoost-style softmax booster. Each round
// fits one second-order regression tree per class on a row subsample, with
// a column subsample per tree.
type GradientBoostingClassifier struct {
	NEstimators     int
	MaxDepth        int
	LearningRate    float64
	Subsample       float64
	ColsampleByTree float64
	Seed            int64

	ClassLabels []string
	NFeatures   int
	// Rounds[r][k] is the tree adding to class k's margin in round r
	Rounds [][]*treeNode
}

// NewGradientBoostingClassifier creates an unfitted booster with XGBoost's defaults
func NewGradientBoostingClassifier(seed int64) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		Subsample:       1,
		ColsampleByTree: 1,
		Seed:            seed,
	}
}

// Type returns the model type
func (m *GradientBoostingClassifier) Type() models.ModelType {
	return models.ModelTypeXGBoost
}

// Classes returns the fitted class labels
func (m *GradientBoostingClassifier) Classes() []string {
	return m.ClassLabels
}

// Fit runs NEstimators boosting rounds
func (m *GradientBoostingClassifier) Fit(X [][]float64, y []string) error {
	nFeatures, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}
	switch {
	case m.NEstimators < 1:
		return fmt.Errorf("n_estimators must be positive, got %d", m.NEstimators)
	case m.MaxDepth < 1:
		return fmt.Errorf("max_depth must be positive, got %d", m.MaxDepth)
	case m.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %v", m.LearningRate)
	case m.Subsample <= 0 || m.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %v", m.Subsample)
	case m.ColsampleByTree <= 0 || m.ColsampleByTree > 1:
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %v", m.ColsampleByTree)
	}

	classes, codes := encodeLabels(y)
	m.ClassLabels = classes
	m.NFeatures = nFeatures
	m.Rounds = nil
	if len(classes) < 2 {
		return nil
	}

	n, K := len(X), len(classes)
	rng := rand.New(rand.NewSource(m.Seed))
	margins := make([][]float64, n)
	for i := range margins {
		margins[i] = make([]float64, K)
	}
	grad := make([][]float64, K)
	hess := make([][]float64, K)
	for k := range grad {
		grad[k] = make([]float64, n)
		hess[k] = make([]float64, n)
	}

	params := treeParams{maxDepth: m.MaxDepth, minSamplesSplit: 2}
	nRows := int(math.Max(1, math.Round(m.Subsample*float64(n))))
	nCols := int(math.Max(1, math.Round(m.ColsampleByTree*float64(nFeatures))))

	p := make([]float64, K)
	for r := 0; r < m.NEstimators; r++ {
		for i := range margins {
			softmax(margins[i], p)
			for k := range p {
				target := 0.0
				if codes[i] == k {
					target = 1
				}
				grad[k][i] = p[k] - target
				hess[k][i] = math.Max(2*p[k]*(1-p[k]), minHessian)
			}
		}

		rows := rng.Perm(n)[:nRows]
		round := make([]*treeNode, K)
		for k := range round {
			grower := &gradientTree{
				X:              X,
				grad:           grad[k],
				hess:           hess[k],
				lambda:         boostLambda,
				minChildWeight: boostMinChildWeight,
				learningRate:   m.LearningRate,
				params:         params,
				features:       rng.Perm(nFeatures)[:nCols],
			}
			round[k] = grower.build(rows, 0)
		}
		m.Rounds = append(m.Rounds, round)

		for i, x := range X {
			for k, tree := range round {
				margins[i][k] += tree.leaf(x)[0]
			}
		}
	}
	return nil
}

// PredictProba applies softmax to the summed tree margins
func (m *GradientBoostingClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.ClassLabels) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.NFeatures); err != nil {
		return nil, err
	}

	K := len(m.ClassLabels)
	out := make([][]float64, len(X))
	margin := make([]float64, K)
	for i, x := range X {
		for k := range margin {
			margin[k] = 0
		}
		for _, round := range m.Rounds {
			for k, tree := range round {
				margin[k] += tree.leaf(x)[0]
			}
		}
		out[i] = make([]float64, K)
		softmax(margin, out[i])
	}
	return out, nil
}

// Predict returns the most probable class per row
func (m *GradientBoostingClassifier) Predict(X [][]float64) ([]string, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, m.ClassLabels), nil
}

// softmax writes the normalized exponentials of margin into dst
func softmax(margin, dst []float64) {
	shift := floats.Max(margin)
	sum := 0.0
	for k, v := range margin {
		dst[k] = math.Exp(v - shift)
		sum += dst[k]
	}
	floats.Scale(1/sum, dst)
}
