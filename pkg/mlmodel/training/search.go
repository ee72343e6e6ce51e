package training

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/evaluation"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
)

// Params is one hyperparameter assignment
type Params map[string]interface{}

// Param is one searchable hyperparameter and its candidate values
type Param struct {
	Name   string
	Values []interface{}
}

// ParamGrid is an ordered set of hyperparameters
type ParamGrid []Param

// Candidates enumerates the Cartesian product, last parameter varying fastest
func (g ParamGrid) Candidates() []Params {
	out := []Params{{}}
	for _, p := range g {
		next := make([]Params, 0, len(out)*len(p.Values))
		for _, base := range out {
			for _, v := range p.Values {
				c := make(Params, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[p.Name] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out
}

// Factory builds an unfitted classifier for a parameter assignment
type Factory func(Params) (Classifier, error)

// CVResult is the cross-validation outcome of one candidate
type CVResult struct {
	Params     Params    `json:"params"`
	FoldScores []float64 `json:"fold_scores"`
	MeanScore  float64   `json:"mean_test_score"`
	StdScore   float64   `json:"std_test_score"`
	Rank       int       `json:"rank_test_score"`
}

// SearchResult is the outcome of a randomized search
type SearchResult struct {
	BestParams    Params
	BestScore     float64
	BestEstimator Classifier
	Results       []CVResult
}

// RandomizedSearch samples NIter distinct candidates from Grid, scores each
// with stratified k-fold macro-F1 and refits the best on all the data
type RandomizedSearch struct {
	Grid    ParamGrid
	NIter   int
	Folds   int
	Seed    int64
	Factory Factory
	Logger  *zap.Logger
}

// Sample returns the candidates evaluated by the search
func (s *RandomizedSearch) Sample() []Params {
	all := s.Grid.Candidates()
	if s.NIter <= 0 || len(all) <= s.NIter {
		return all
	}
	rng := rand.New(rand.NewSource(s.Seed))
	picked := make([]Params, s.NIter)
	for i, j := range rng.Perm(len(all))[:s.NIter] {
		picked[i] = all[j]
	}
	return picked
}

// Fit runs the search. Candidates are evaluated concurrently; ties in mean
// score keep the earlier candidate.
func (s *RandomizedSearch) Fit(ctx context.Context, X [][]float64, y []string) (*SearchResult, error) {
	logger := logging.OrNop(s.Logger)
	if s.Factory == nil {
		return nil, fmt.Errorf("search has no estimator factory")
	}
	if _, err := checkTrainingData(X, y); err != nil {
		return nil, err
	}
	folds, err := StratifiedKFold(y, s.Folds)
	if err != nil {
		return nil, err
	}

	candidates := s.Sample()
	results := make([]CVResult, len(candidates))
	logger.Info("Starting randomized search",
		zap.Int("candidates", len(candidates)),
		zap.Int("folds", len(folds)),
		zap.Int("samples", len(X)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c, params := range candidates {
		c, params := c, params
		g.Go(func() error {
			scores := make([]float64, len(folds))
			for f, fold := range folds {
				if err := gctx.Err(); err != nil {
					return err
				}
				score, err := s.scoreFold(params, X, y, fold)
				if err != nil {
					return fmt.Errorf("candidate %v fold %d: %w", params, f, err)
				}
				scores[f] = score
			}
			mean, std := stat.PopMeanStdDev(scores, nil)
			results[c] = CVResult{Params: params, FoldScores: scores, MeanScore: mean, StdScore: std}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for c := range results {
		if results[c].MeanScore > results[best].MeanScore {
			best = c
		}
	}
	rankResults(results)

	estimator, err := s.Factory(results[best].Params)
	if err != nil {
		return nil, err
	}
	if err := estimator.Fit(X, y); err != nil {
		return nil, fmt.Errorf("failed to refit best estimator: %w", err)
	}

	logger.Info("Randomized search complete",
		zap.Any("best_params", results[best].Params),
		zap.Float64("best_score", results[best].MeanScore))

	return &SearchResult{
		BestParams:    results[best].Params,
		BestScore:     results[best].MeanScore,
		BestEstimator: estimator,
		Results:       results,
	}, nil
}

func (s *RandomizedSearch) scoreFold(params Params, X [][]float64, y []string, fold Fold) (float64, error) {
	model, err := s.Factory(params)
	if err != nil {
		return 0, err
	}
	trainX, trainY := subset(X, y, fold.Train)
	testX, testY := subset(X, y, fold.Test)
	if err := model.Fit(trainX, trainY); err != nil {
		return 0, err
	}
	pred, err := model.Predict(testX)
	if err != nil {
		return 0, err
	}
	return evaluation.MacroF1(testY, pred)
}

// rankResults assigns rank 1 to the best mean score; equal scores share the
// lowest rank
func rankResults(results []CVResult) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].MeanScore > results[order[b]].MeanScore
	})
	for pos, i := range order {
		rank := pos + 1
		if pos > 0 && results[i].MeanScore == results[order[pos-1]].MeanScore {
			rank = results[order[pos-1]].Rank
		}
		results[i].Rank = rank
	}
}

// Fold is one train/test index split
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold deals each class's rows round-robin over k folds in row
// order, starting each class one fold later than the previous, so every fold
// keeps roughly the class proportions
func StratifiedKFold(y []string, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}

	assignment := make([]int, len(y))
	seen := make(map[string]int)
	offset := 0
	classes, _ := encodeLabels(y)
	start := make(map[string]int, len(classes))
	for _, c := range classes {
		start[c] = offset
		offset++
	}
	for i, label := range y {
		assignment[i] = (start[label] + seen[label]) % k
		seen[label]++
	}

	folds := make([]Fold, k)
	for i, f := range assignment {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	for j, fold := range folds {
		if len(fold.Test) == 0 {
			return nil, fmt.Errorf("fold %d is empty", j)
		}
	}
	return folds, nil
}

func subset(X [][]float64, y []string, idx []int) ([][]float64, []string) {
	xs := make([][]float64, len(idx))
	ys := make([]string, len(idx))
	for j, i := range idx {
		xs[j] = X[i]
		ys[j] = y[i]
	}
	return xs, ys
}
