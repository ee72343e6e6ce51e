package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sjwhitworth/golearn/base"
	golearn "github.com/sjwhitworth/golearn/evaluation"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// ErrEmpty is returned when there are no samples to score
var ErrEmpty = errors.New("no samples to evaluate")

// ConfusionMatrix counts aligned label pairs as true class → predicted class → count
func ConfusionMatrix(yTrue, yPred []string) (golearn.ConfusionMatrix, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("label count mismatch: %d true, %d predicted", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, ErrEmpty
	}

	ref, err := labelGrid(yTrue)
	if err != nil {
		return nil, err
	}
	gen, err := labelGrid(yPred)
	if err != nil {
		return nil, err
	}
	cm, err := golearn.GetConfusionMatrix(ref, gen)
	if err != nil {
		return nil, fmt.Errorf("failed to compute confusion matrix: %w", err)
	}
	return cm, nil
}

// labelGrid wraps labels in a single class-attribute instance grid
func labelGrid(labels []string) (*base.DenseInstances, error) {
	attr := base.NewCategoricalAttribute()
	attr.SetName("class")

	grid := base.NewDenseInstances()
	spec := grid.AddAttribute(attr)
	if err := grid.AddClassAttribute(attr); err != nil {
		return nil, fmt.Errorf("failed to set class attribute: %w", err)
	}
	if err := grid.Extend(len(labels)); err != nil {
		return nil, fmt.Errorf("failed to allocate instances: %w", err)
	}
	for i, label := range labels {
		grid.Set(spec, i, attr.GetSysValFromString(label))
	}
	return grid, nil
}

// Labels returns the sorted union of true and predicted labels
func Labels(yTrue, yPred []string) []string {
	seen := make(map[string]struct{})
	for _, l := range yTrue {
		seen[l] = struct{}{}
	}
	for _, l := range yPred {
		seen[l] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// ClassMetrics holds precision, recall and F1 for one class or an average
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is a per-class classification report with overall averages
type Report struct {
	Labels      []string
	PerClass    map[string]ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
}

// MarshalJSON flattens the report into one object keyed by class name plus
// "accuracy", "macro avg" and "weighted avg"
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.PerClass)+3)
	for label, m := range r.PerClass {
		out[label] = m
	}
	out["accuracy"] = r.Accuracy
	out["macro avg"] = r.MacroAvg
	out["weighted avg"] = r.WeightedAvg
	return json.Marshal(out)
}

// ClassificationReport scores predictions per class. Zero divisions yield 0.
func ClassificationReport(yTrue, yPred []string) (*Report, error) {
	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	labels := Labels(yTrue, yPred)
	report := &Report{Labels: labels, PerClass: make(map[string]ClassMetrics, len(labels))}

	var correct float64
	total := len(yTrue)
	for _, label := range labels {
		tp := golearn.GetTruePositives(label, cm)
		fp := golearn.GetFalsePositives(label, cm)
		fn := golearn.GetFalseNegatives(label, cm)
		correct += tp

		m := ClassMetrics{
			Precision: safeDiv(tp, tp+fp),
			Recall:    safeDiv(tp, tp+fn),
			Support:   int(tp + fn),
		}
		m.F1Score = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
		report.PerClass[label] = m

		report.MacroAvg.Precision += m.Precision
		report.MacroAvg.Recall += m.Recall
		report.MacroAvg.F1Score += m.F1Score

		w := float64(m.Support)
		report.WeightedAvg.Precision += w * m.Precision
		report.WeightedAvg.Recall += w * m.Recall
		report.WeightedAvg.F1Score += w * m.F1Score
	}

	k := float64(len(labels))
	report.MacroAvg.Precision /= k
	report.MacroAvg.Recall /= k
	report.MacroAvg.F1Score /= k
	report.MacroAvg.Support = total

	n := float64(total)
	report.WeightedAvg.Precision /= n
	report.WeightedAvg.Recall /= n
	report.WeightedAvg.F1Score /= n
	report.WeightedAvg.Support = total

	report.Accuracy = correct / n
	return report, nil
}

// Accuracy is the fraction of exact matches
func Accuracy(yTrue, yPred []string) (float64, error) {
	report, err := ClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return report.Accuracy, nil
}

// MacroF1 is the unweighted mean F1 over the union of true and predicted labels
func MacroF1(yTrue, yPred []string) (float64, error) {
	report, err := ClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return report.MacroAvg.F1Score, nil
}

// SaveClassificationReport writes the report as indented JSON
func SaveClassificationReport(report *Report, path string) error {
	return storage.SaveJSON(path, report)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
