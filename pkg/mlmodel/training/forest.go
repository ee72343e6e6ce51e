package training

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

// ClassWeightBalanced weights classes inversely to their frequency
const ClassWeightBalanced = "balanced"

// RandomForestClassifier is a bagged ensemble of Gini trees that each
// consider sqrt(n_features) candidates per split
type RandomForestClassifier struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	ClassWeight     string
	Seed            int64

	ClassLabels []string
	NFeatures   int
	Trees       []*treeNode
}

// NewRandomForestClassifier creates an unfitted forest with the library defaults
func NewRandomForestClassifier(seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Type returns the model type
func (m *RandomForestClassifier) Type() models.ModelType {
	return models.ModelTypeRandomForest
}

// Classes returns the fitted class labels
func (m *RandomForestClassifier) Classes() []string {
	return m.ClassLabels
}

// Fit trains every tree on its own bootstrap sample in parallel
func (m *RandomForestClassifier) Fit(X [][]float64, y []string) error {
	nFeatures, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}
	if m.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be positive, got %d", m.NEstimators)
	}
	if m.ClassWeight != "" && m.ClassWeight != ClassWeightBalanced {
		return fmt.Errorf("unsupported class_weight %q", m.ClassWeight)
	}

	classes, codes := encodeLabels(y)
	classWeight := make([]float64, len(classes))
	for k := range classWeight {
		classWeight[k] = 1
	}
	if m.ClassWeight == ClassWeightBalanced {
		freq := make([]float64, len(classes))
		for _, c := range codes {
			freq[c]++
		}
		for k, f := range freq {
			classWeight[k] = float64(len(y)) / (float64(len(classes)) * f)
		}
	}

	params := treeParams{
		maxDepth:        m.MaxDepth,
		minSamplesSplit: m.MinSamplesSplit,
		maxFeatures:     int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures))))),
	}

	trees := make([]*treeNode, m.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(m.Seed + int64(t)))

			draws := make([]float64, len(X))
			for range X {
				draws[rng.Intn(len(X))]++
			}
			weights := make([]float64, len(X))
			idx := make([]int, 0, len(X))
			for i, d := range draws {
				if d > 0 {
					weights[i] = d * classWeight[codes[i]]
					idx = append(idx, i)
				}
			}

			grower := &giniTree{
				X:        X,
				y:        codes,
				w:        weights,
				nClasses: len(classes),
				params:   params,
				rng:      rng,
			}
			trees[t] = grower.build(idx, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.ClassLabels = classes
	m.NFeatures = nFeatures
	m.Trees = trees
	return nil
}

// PredictProba averages the leaf class distributions over all trees
func (m *RandomForestClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.NFeatures); err != nil {
		return nil, err
	}

	out := make([][]float64, len(X))
	scale := 1 / float64(len(m.Trees))
	for i, x := range X {
		p := make([]float64, len(m.ClassLabels))
		for _, tree := range m.Trees {
			for k, v := range tree.leaf(x) {
				p[k] += v * scale
			}
		}
		out[i] = p
	}
	return out, nil
}

// Predict returns the most probable class per row
func (m *RandomForestClassifier) Predict(X [][]float64) ([]string, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, m.ClassLabels), nil
}
