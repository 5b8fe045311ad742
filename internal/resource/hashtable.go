package resource

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// StaticHashTable is an immutable int64 -> float32 table. The bigram cost
// model keys it by (leftID << 32 | rightID).
type StaticHashTable struct {
	values map[int64]float32
}

// BigramKey packs two term ids into a StaticHashTable key.
func BigramKey(left, right int32) int64 {
	return int64(left)<<32 | int64(uint32(right))
}

// LoadStaticHashTable reads a KindInt64Float resource file. Duplicate keys
// are rejected as corruption.
func LoadStaticHashTable(path string) (*StaticHashTable, error) {
	h, payload, err := readRecords(path, KindInt64Float)
	if err != nil {
		return nil, err
	}
	values := make(map[int64]float32, h.Count)
	for i := 0; i < int(h.Count); i++ {
		rec := payload[i*12:]
		key := int64(binary.LittleEndian.Uint64(rec[0:8]))
		if _, dup := values[key]; dup {
			return nil, perrors.Corruption("loading "+filepath.Base(path), "duplicate key %d", key)
		}
		values[key] = math.Float32frombits(binary.LittleEndian.Uint32(rec[8:12]))
	}
	return &StaticHashTable{values: values}, nil
}

// WriteStaticHashTable stores the table with keys in ascending order.
func WriteStaticHashTable(path string, values map[int64]float32) error {
	keys := make([]int64, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	payload := make([]byte, len(keys)*12)
	for i, k := range keys {
		rec := payload[i*12:]
		binary.LittleEndian.PutUint64(rec[0:8], uint64(k))
		binary.LittleEndian.PutUint32(rec[8:12], math.Float32bits(values[k]))
	}
	return writeRecords(path, KindInt64Float, len(keys), payload)
}

// Find returns the value stored under key.
func (t *StaticHashTable) Find(key int64) (float32, bool) {
	v, ok := t.values[key]
	return v, ok
}

func (t *StaticHashTable) Len() int {
	return len(t.values)
}
