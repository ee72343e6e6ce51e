package evaluation

import (
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// Scorer is a fitted model able to emit per-class probabilities
type Scorer interface {
	Classes() []string
	PredictProba(X [][]float64) ([][]float64, error)
}

// countGrid adapts a confusion matrix to plotter.GridXYZ. Row 0 is drawn at
// the top so the first true label reads first.
type countGrid struct {
	counts [][]float64
}

func (g countGrid) Dims() (c, r int)   { return len(g.counts), len(g.counts) }
func (g countGrid) Z(c, r int) float64 { return g.counts[len(g.counts)-1-r][c] }
func (g countGrid) X(c int) float64    { return float64(c) }
func (g countGrid) Y(r int) float64    { return float64(r) }

// PlotConfusionMatrix renders the confusion matrix as an annotated heatmap.
// labels fixes the axis order; nil uses the sorted union of both slices.
func PlotConfusionMatrix(yTrue, yPred, labels []string, path, title string) error {
	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return err
	}
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}

	n := len(labels)
	grid := countGrid{counts: make([][]float64, n)}
	var cells plotter.XYLabels
	for i, actual := range labels {
		grid.counts[i] = make([]float64, n)
		for j, predicted := range labels {
			count := cm[actual][predicted]
			grid.counts[i][j] = float64(count)
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(j), Y: float64(n - 1 - i)})
			cells.Labels = append(cells.Labels, strconv.Itoa(count))
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"

	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(heat)

	annotations, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("failed to annotate confusion matrix: %w", err)
	}
	p.Add(annotations)

	xTicks := make([]plot.Tick, n)
	yTicks := make([]plot.Tick, n)
	for i, label := range labels {
		xTicks[i] = plot.Tick{Value: float64(i), Label: label}
		yTicks[i] = plot.Tick{Value: float64(n - 1 - i), Label: label}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	return save(p, path)
}

// Curve is one ROC curve
type Curve struct {
	Class string
	FPR   []float64
	TPR   []float64
	AUC   float64
}

// ROCCurves computes one-vs-rest curves for each class with both positive and
// negative samples. A binary problem yields a single curve for the second class.
func ROCCurves(model Scorer, X [][]float64, y []string) ([]Curve, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("sample count mismatch: %d rows, %d labels", len(X), len(y))
	}
	if len(y) == 0 {
		return nil, ErrEmpty
	}
	proba, err := model.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("failed to score samples: %w", err)
	}

	classes := model.Classes()
	targets := make([]int, 0, len(classes))
	if len(classes) == 2 {
		targets = append(targets, 1)
	} else {
		for k := range classes {
			targets = append(targets, k)
		}
	}

	var curves []Curve
	for _, k := range targets {
		scores := make([]float64, len(y))
		positive := make([]bool, len(y))
		var nPos int
		for i := range y {
			scores[i] = proba[i][k]
			positive[i] = y[i] == classes[k]
			if positive[i] {
				nPos++
			}
		}
		if nPos == 0 || nPos == len(y) {
			continue
		}

		stat.SortWeightedLabeled(scores, positive, nil)
		tpr, fpr, _ := stat.ROC(nil, scores, positive, nil)
		curves = append(curves, Curve{
			Class: classes[k],
			FPR:   fpr,
			TPR:   tpr,
			AUC:   integrate.Trapezoidal(fpr, tpr),
		})
	}
	if len(curves) == 0 {
		return nil, fmt.Errorf("no class has both positive and negative samples")
	}
	return curves, nil
}

// PlotROC renders ROC curves with their AUC in the legend
func PlotROC(model Scorer, X [][]float64, y []string, path, title string) error {
	curves, err := ROCCurves(model, X, y)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	p.Legend.Left = false

	for i, c := range curves {
		points := make(plotter.XYs, len(c.FPR))
		for j := range c.FPR {
			points[j] = plotter.XY{X: c.FPR[j], Y: c.TPR[j]}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("failed to plot ROC for %s: %w", c.Class, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.2f)", c.Class, c.AUC), line)
	}

	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	diagonal.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diagonal)

	return save(p, path)
}

// RenderROC draws the ROC plot and only logs failures; the plot is optional
// output so a failure never aborts the caller
func RenderROC(model Scorer, X [][]float64, y []string, path, title string, logger *zap.Logger) (ok bool) {
	logger = logging.OrNop(logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("ROC plot panicked, skipping", zap.Any("panic", r), zap.String("path", path))
			ok = false
		}
	}()

	if err := PlotROC(model, X, y, path, title); err != nil {
		logger.Warn("Could not generate ROC plot", zap.Error(err), zap.String("path", path))
		return false
	}
	return true
}

func save(p *plot.Plot, path string) error {
	if err := storage.EnsureDirs(filepath.Dir(path)); err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
