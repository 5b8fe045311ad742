package resource

import (
	"encoding/json"
	"os"
	"path/filepath"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// HMMModel is a first-order hidden Markov POS model with log probabilities.
type HMMModel struct {
	tags        []string
	tagIndex    map[string]int
	initial     []float64
	transitions [][]float64
	emissions   map[string]map[int]float64
}

type hmmFile struct {
	Tags        []string                      `json:"tags"`
	Initial     []float64                     `json:"initial"`
	Transitions [][]float64                   `json:"transitions"`
	Emissions   map[string]map[string]float64 `json:"emissions"`
}

// LoadHMMModel reads a JSON encoded HMM. Emission tags must be declared in
// the tag list.
func LoadHMMModel(path string) (*HMMModel, error) {
	op := "loading " + filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.IO(op, err)
	}
	var f hmmFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, perrors.Wrap(perrors.ErrCorruption, op, err)
	}
	n := len(f.Tags)
	if n == 0 {
		return nil, perrors.Corruption(op, "model declares no tags")
	}
	tagIndex := make(map[string]int, n)
	for i, t := range f.Tags {
		if _, dup := tagIndex[t]; dup {
			return nil, perrors.Corruption(op, "duplicate tag %q", t)
		}
		tagIndex[t] = i
	}
	if len(f.Initial) != n {
		return nil, perrors.Corruption(op, "initial vector has %d entries, want %d", len(f.Initial), n)
	}
	if len(f.Transitions) != n {
		return nil, perrors.Corruption(op, "transition matrix has %d rows, want %d", len(f.Transitions), n)
	}
	for i, row := range f.Transitions {
		if len(row) != n {
			return nil, perrors.Corruption(op, "transition row %d has %d columns, want %d", i, len(row), n)
		}
	}
	emissions := make(map[string]map[int]float64, len(f.Emissions))
	for word, byTag := range f.Emissions {
		m := make(map[int]float64, len(byTag))
		for tag, p := range byTag {
			i, ok := tagIndex[tag]
			if !ok {
				return nil, perrors.Corruption(op, "emission for %q uses undeclared tag %q", word, tag)
			}
			m[i] = p
		}
		emissions[word] = m
	}
	return &HMMModel{
		tags:        f.Tags,
		tagIndex:    tagIndex,
		initial:     f.Initial,
		transitions: f.Transitions,
		emissions:   emissions,
	}, nil
}

func (m *HMMModel) Tags() []string { return m.tags }

func (m *HMMModel) TagIndex(tag string) (int, bool) {
	i, ok := m.tagIndex[tag]
	return i, ok
}

func (m *HMMModel) Initial(tag int) float64 { return m.initial[tag] }

func (m *HMMModel) Transition(from, to int) float64 { return m.transitions[from][to] }

// Emission returns log P(word | tag).
func (m *HMMModel) Emission(word string, tag int) (float64, bool) {
	p, ok := m.emissions[word][tag]
	return p, ok
}
