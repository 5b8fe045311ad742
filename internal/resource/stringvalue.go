package resource

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// StringValue is a word -> float32 map addressed through a TrieIndex: the file
// stores (term id, value) records and lookups resolve the word to its id
// first. The IDF model is one of these.
type StringValue struct {
	index  *TrieIndex
	values map[int32]float32
}

// LoadStringValue reads a KindInt32Float resource file whose ids refer to
// index. index must be non-nil.
func LoadStringValue(path string, index *TrieIndex) (*StringValue, error) {
	op := "loading " + filepath.Base(path)
	if index == nil {
		return nil, perrors.Wrap(perrors.ErrUpstream, op, nil)
	}
	h, payload, err := readRecords(path, KindInt32Float)
	if err != nil {
		return nil, err
	}
	values := make(map[int32]float32, h.Count)
	for i := 0; i < int(h.Count); i++ {
		rec := payload[i*8:]
		id := int32(binary.LittleEndian.Uint32(rec[0:4]))
		if _, dup := values[id]; dup {
			return nil, perrors.Corruption(op, "duplicate term id %d", id)
		}
		values[id] = math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8]))
	}
	return &StringValue{index: index, values: values}, nil
}

// WriteStringValue stores id -> value records in ascending id order.
func WriteStringValue(path string, values map[int32]float32) error {
	ids := make([]int32, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	payload := make([]byte, len(ids)*8)
	for i, id := range ids {
		rec := payload[i*8:]
		binary.LittleEndian.PutUint32(rec[0:4], uint32(id))
		binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(values[id]))
	}
	return writeRecords(path, KindInt32Float, len(ids), payload)
}

// Get returns the value stored for word.
func (s *StringValue) Get(word string) (float32, bool) {
	id, ok := s.index.Search(word)
	if !ok {
		return 0, false
	}
	v, ok := s.values[id]
	return v, ok
}

func (s *StringValue) Len() int {
	return len(s.values)
}
