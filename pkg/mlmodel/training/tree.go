package training

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is a binary split node; leaves carry Value. Rows with
// x[Feature] <= Threshold go left.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      *treeNode
	Right     *treeNode
	Value     []float64
	Leaf      bool
}

func (n *treeNode) leaf(x []float64) []float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// treeParams bounds tree growth. MaxDepth 0 means unlimited and
// MaxFeatures 0 means every feature is a split candidate.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
}

func (p treeParams) canSplit(depth, n int) bool {
	if p.maxDepth > 0 && depth >= p.maxDepth {
		return false
	}
	return n >= p.minSamplesSplit && n >= 2
}

// featureOrder returns the candidate features for one split
func (p treeParams) featureOrder(nFeatures int, rng *rand.Rand) []int {
	if p.maxFeatures <= 0 || p.maxFeatures >= nFeatures || rng == nil {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(nFeatures)[:p.maxFeatures]
}

// sortByFeature orders idx by X[.][f] ascending
func sortByFeature(X [][]float64, idx []int, f int) []int {
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return X[sorted[a]][f] < X[sorted[b]][f]
	})
	return sorted
}

// splitThreshold is the midpoint of lo < hi, falling back to lo when the
// midpoint rounds up to hi so the right child is never empty
func splitThreshold(lo, hi float64) float64 {
	mid := lo + (hi-lo)/2
	if mid >= hi {
		return lo
	}
	return mid
}

func partition(X [][]float64, idx []int, f int, threshold float64) (left, right []int) {
	for _, i := range idx {
		if X[i][f] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// giniTree grows a weighted CART classification tree
type giniTree struct {
	X        [][]float64
	y        []int
	w        []float64
	nClasses int
	params   treeParams
	rng      *rand.Rand
}

func (t *giniTree) build(idx []int, depth int) *treeNode {
	counts := make([]float64, t.nClasses)
	total := 0.0
	for _, i := range idx {
		counts[t.y[i]] += t.w[i]
		total += t.w[i]
	}
	leaf := func() *treeNode {
		dist := make([]float64, t.nClasses)
		if total > 0 {
			for k, c := range counts {
				dist[k] = c / total
			}
		}
		return &treeNode{Leaf: true, Value: dist}
	}

	if !t.params.canSplit(depth, len(idx)) || isPure(counts) {
		return leaf()
	}

	parent := gini(counts, total) * total
	bestFeature, bestThreshold, bestImpurity := -1, 0.0, parent

	left := make([]float64, t.nClasses)
	for _, f := range t.params.featureOrder(len(t.X[0]), t.rng) {
		sorted := sortByFeature(t.X, idx, f)
		for k := range left {
			left[k] = 0
		}
		leftTotal := 0.0
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[t.y[i]] += t.w[i]
			leftTotal += t.w[i]

			lo, hi := t.X[i][f], t.X[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			rightTotal := total - leftTotal
			impurity := gini(left, leftTotal)*leftTotal + giniComplement(counts, left, rightTotal)*rightTotal
			if impurity < bestImpurity-1e-12 {
				bestFeature = f
				bestThreshold = splitThreshold(lo, hi)
				bestImpurity = impurity
			}
		}
	}
	if bestFeature < 0 {
		return leaf()
	}

	l, r := partition(t.X, idx, bestFeature, bestThreshold)
	if len(l) == 0 || len(r) == 0 {
		return leaf()
	}
	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      t.build(l, depth+1),
		Right:     t.build(r, depth+1),
	}
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}

// giniComplement is the impurity of all minus left
func giniComplement(all, left []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	impurity := 1.0
	for k := range all {
		p := (all[k] - left[k]) / total
		impurity -= p * p
	}
	return impurity
}

// gradientTree grows a second-order regression tree on per-row gradients
// and hessians, XGBoost style
type gradientTree struct {
	X              [][]float64
	grad           []float64
	hess           []float64
	lambda         float64
	minChildWeight float64
	learningRate   float64
	params         treeParams
	features       []int
}

func (t *gradientTree) build(idx []int, depth int) *treeNode {
	var G, H float64
	for _, i := range idx {
		G += t.grad[i]
		H += t.hess[i]
	}
	leaf := func() *treeNode {
		return &treeNode{Leaf: true, Value: []float64{-G / (H + t.lambda) * t.learningRate}}
	}

	if !t.params.canSplit(depth, len(idx)) || H < 2*t.minChildWeight {
		return leaf()
	}

	parentScore := G * G / (H + t.lambda)
	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	for _, f := range t.features {
		sorted := sortByFeature(t.X, idx, f)
		var GL, HL float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			GL += t.grad[i]
			HL += t.hess[i]

			lo, hi := t.X[i][f], t.X[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < t.minChildWeight || HR < t.minChildWeight {
				continue
			}
			gain := GL*GL/(HL+t.lambda) + GR*GR/(HR+t.lambda) - parentScore
			if gain > bestGain+1e-12 {
				bestFeature = f
				bestThreshold = splitThreshold(lo, hi)
				bestGain = gain
			}
		}
	}
	if bestFeature < 0 || math.IsNaN(bestGain) {
		return leaf()
	}

	l, r := partition(t.X, idx, bestFeature, bestThreshold)
	if len(l) == 0 || len(r) == 0 {
		return leaf()
	}
	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      t.build(l, depth+1),
		Right:     t.build(r, depth+1),
	}
}
