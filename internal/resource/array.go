package resource

import (
	"encoding/binary"
	"math"
)

// StaticArray is an immutable float32 array, used for unigram costs and the
// user dictionary cost table.
type StaticArray struct {
	values []float32
}

// NewStaticArray copies values into a new StaticArray.
func NewStaticArray(values []float32) *StaticArray {
	cp := make([]float32, len(values))
	copy(cp, values)
	return &StaticArray{values: cp}
}

// LoadStaticArray reads a KindFloatArray resource file.
func LoadStaticArray(path string) (*StaticArray, error) {
	h, payload, err := readRecords(path, KindFloatArray)
	if err != nil {
		return nil, err
	}
	values := make([]float32, h.Count)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return &StaticArray{values: values}, nil
}

// WriteStaticArray stores values as a KindFloatArray resource file.
func WriteStaticArray(path string, values []float32) error {
	payload := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	return writeRecords(path, KindFloatArray, len(values), payload)
}

// Get returns the value at i. It panics when i is out of range.
func (a *StaticArray) Get(i int) float32 {
	return a.values[i]
}

func (a *StaticArray) Len() int {
	return len(a.values)
}
