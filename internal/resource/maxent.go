package resource

import (
	"path/filepath"
	"strconv"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// MaxentModel is a multiclass linear model: each feature string carries one
// weight per class and a class score is the sum of the weights of the active
// features. The dependency parser uses it as its perceptron.
//
// File format, tab separated, '#' lines ignored:
//
//	classes	SH	RE	LA-nsubj	RA-dobj ...
//	<feature>	<w0>	<w1>	...
type MaxentModel struct {
	classes []string
	weights map[string][]float64
}

// NewMaxentModel builds a model in memory. Every weight row must have one
// entry per class.
func NewMaxentModel(classes []string, weights map[string][]float64) (*MaxentModel, error) {
	if len(classes) == 0 {
		return nil, perrors.Corruption("building maxent model", "no classes")
	}
	for feat, w := range weights {
		if len(w) != len(classes) {
			return nil, perrors.Corruption("building maxent model", "feature %q has %d weights, want %d", feat, len(w), len(classes))
		}
	}
	return &MaxentModel{classes: classes, weights: weights}, nil
}

// LoadMaxentModel reads a model in the tab separated text format.
func LoadMaxentModel(path string) (*MaxentModel, error) {
	op := "loading " + filepath.Base(path)
	var classes []string
	weights := make(map[string][]float64)
	err := ScanLines(path, func(lineNo int, line string) error {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		fields := strings.Split(line, "\t")
		if classes == nil {
			if fields[0] != "classes" || len(fields) < 2 {
				return perrors.Corruption(op, "line %d: expected classes header", lineNo)
			}
			classes = fields[1:]
			return nil
		}
		if len(fields) != len(classes)+1 {
			return perrors.Corruption(op, "line %d: %d weights, want %d", lineNo, len(fields)-1, len(classes))
		}
		feat := fields[0]
		if _, dup := weights[feat]; dup {
			return perrors.Corruption(op, "line %d: duplicate feature %q", lineNo, feat)
		}
		row := make([]float64, len(classes))
		for i, text := range fields[1:] {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return perrors.Corruption(op, "line %d: bad weight %q", lineNo, text)
			}
			row[i] = v
		}
		weights[feat] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	if classes == nil {
		return nil, perrors.Corruption(op, "model has no classes header")
	}
	return &MaxentModel{classes: classes, weights: weights}, nil
}

// Classes returns the class names in weight column order.
func (m *MaxentModel) Classes() []string { return m.classes }

// NumFeatures returns the number of weighted features.
func (m *MaxentModel) NumFeatures() int { return len(m.weights) }

// Score overwrites scores, which must have len(Classes()) entries, with the
// class scores of features. Unknown features contribute nothing.
func (m *MaxentModel) Score(features []string, scores []float64) {
	for i := range scores {
		scores[i] = 0
	}
	for _, f := range features {
		row, ok := m.weights[f]
		if !ok {
			continue
		}
		for i, w := range row {
			scores[i] += w
		}
	}
}

// Predict returns the highest scoring class, the earliest one on ties.
func (m *MaxentModel) Predict(features []string) string {
	scores := make([]float64, len(m.classes))
	m.Score(features, scores)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return m.classes[best]
}
