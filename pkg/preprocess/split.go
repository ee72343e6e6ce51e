package preprocess

import (
	"fmt"
	"math"
	"math/rand"
)

// Split holds train and test partitions
type Split struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []string
	YTest  []string
}

// SplitIndices draws a seeded permutation and cuts ceil(testSize*n) test
// rows from its front
func SplitIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d samples with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit partitions X and y with SplitIndices
func TrainTestSplit(X [][]float64, y []string, testSize float64, seed int64) (*Split, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("X and y must have same number of samples")
	}
	train, test, err := SplitIndices(len(X), testSize, seed)
	if err != nil {
		return nil, err
	}

	s := &Split{}
	s.XTrain, s.YTrain = take(X, y, train)
	s.XTest, s.YTest = take(X, y, test)
	return s, nil
}

func take(X [][]float64, y []string, idx []int) ([][]float64, []string) {
	xs := make([][]float64, len(idx))
	ys := make([]string, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
