package resource

import (
	"encoding/json"
	"os"
	"path/filepath"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// CRFModel holds the weights of a linear-chain CRF: one weight per label for
// every observation feature, plus a label transition matrix. The segmentation
// and POS decoders consume it; decoding itself lives outside this package.
type CRFModel struct {
	labels      []string
	labelIndex  map[string]int
	transitions [][]float64
	features    map[string][]float64
}

type crfFile struct {
	Labels      []string             `json:"labels"`
	Transitions [][]float64          `json:"transitions"`
	Features    map[string][]float64 `json:"features"`
}

// LoadCRFModel reads a JSON encoded CRF model.
func LoadCRFModel(path string) (*CRFModel, error) {
	op := "loading " + filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.IO(op, err)
	}
	var f crfFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, perrors.Wrap(perrors.ErrCorruption, op, err)
	}
	n := len(f.Labels)
	if n == 0 {
		return nil, perrors.Corruption(op, "model declares no labels")
	}
	labelIndex := make(map[string]int, n)
	for i, l := range f.Labels {
		if _, dup := labelIndex[l]; dup {
			return nil, perrors.Corruption(op, "duplicate label %q", l)
		}
		labelIndex[l] = i
	}
	if len(f.Transitions) != n {
		return nil, perrors.Corruption(op, "transition matrix has %d rows, want %d", len(f.Transitions), n)
	}
	for i, row := range f.Transitions {
		if len(row) != n {
			return nil, perrors.Corruption(op, "transition row %d has %d columns, want %d", i, len(row), n)
		}
	}
	for feat, w := range f.Features {
		if len(w) != n {
			return nil, perrors.Corruption(op, "feature %q has %d weights, want %d", feat, len(w), n)
		}
	}
	return &CRFModel{
		labels:      f.Labels,
		labelIndex:  labelIndex,
		transitions: f.Transitions,
		features:    f.Features,
	}, nil
}

func (m *CRFModel) Labels() []string { return m.labels }

func (m *CRFModel) NumLabels() int { return len(m.labels) }

// LabelIndex returns the position of label in Labels.
func (m *CRFModel) LabelIndex(label string) (int, bool) {
	i, ok := m.labelIndex[label]
	return i, ok
}

// Transition returns the weight of moving from label index from to to.
func (m *CRFModel) Transition(from, to int) float64 {
	return m.transitions[from][to]
}

// Emission returns the per-label weights of feature, or nil when the feature
// is unknown. The returned slice must not be modified.
func (m *CRFModel) Emission(feature string) []float64 {
	return m.features[feature]
}
