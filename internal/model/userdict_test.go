package model

import (
	"path/filepath"
	"testing"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserDictionaryNotConfigured(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.UserIndex()
	assert.ErrorIs(t, err, perrors.ErrNotConfigured)
	_, err = s.UserCost()
	assert.ErrorIs(t, err, perrors.ErrNotConfigured)
}

func TestSetUserDictionaryEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "user.dict", "\n  \n")
	s := NewStore(dir)

	err := s.SetUserDictionary(filepath.Join(dir, "user.dict"))
	assert.ErrorIs(t, err, perrors.ErrCorruption)
	_, err = s.UserIndex()
	assert.ErrorIs(t, err, perrors.ErrNotConfigured)
}

func TestSetUserDictionaryMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())

	err := s.SetUserDictionary(filepath.Join(t.TempDir(), "absent.dict"))
	assert.ErrorIs(t, err, perrors.ErrIO)
}

func TestSetUserDictionaryEntries(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "user.dict", "云计算 5.5\n\n  大数据\n区块链\tabc\n云计算 1.0\n机器学习   2\n")
	s := NewStore(dir)

	require.NoError(t, s.SetUserDictionary(filepath.Join(dir, "user.dict")))

	index, cost, err := s.UserDictionary()
	require.NoError(t, err)
	require.Equal(t, 4, index.Len())
	require.Equal(t, 4, cost.Len())

	expected := []struct {
		word string
		cost float32
	}{
		{"云计算", 5.5},
		{"大数据", DefaultUserCost},
		{"区块链", DefaultUserCost},
		{"机器学习", 2},
	}
	for i, e := range expected {
		id, ok := index.Search(e.word)
		require.True(t, ok, e.word)
		assert.Equal(t, UserTermIDStart+int32(i), id, e.word)
		assert.Equal(t, e.cost, cost.Get(int(id-UserTermIDStart)), e.word)
	}
	assert.Contains(t, s.Loaded(), ResUserDictionary)
}

func TestSetUserDictionaryReplacesAsUnit(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "a.dict", "甲 1\n乙 2\n")
	writeModelFile(t, dir, "empty.dict", "")
	s := NewStore(dir)

	require.NoError(t, s.SetUserDictionary(filepath.Join(dir, "a.dict")))
	before, _, err := s.UserDictionary()
	require.NoError(t, err)

	assert.Error(t, s.SetUserDictionary(filepath.Join(dir, "empty.dict")))
	after, cost, err := s.UserDictionary()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, 2, cost.Len())

	require.NoError(t, s.SetUserDictionaryMap(map[string]float32{"丙": 3, " ": 9}))
	index, cost, err := s.UserDictionary()
	require.NoError(t, err)
	assert.Equal(t, 1, index.Len())
	assert.Equal(t, 1, cost.Len())
	assert.False(t, index.Contains("甲"))
}

func TestSetUserDictionaryMapSortedIDs(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.SetUserDictionaryMap(map[string]float32{"b": 2, "a": 1, "c": 3}))
	index, cost, err := s.UserDictionary()
	require.NoError(t, err)

	for i, word := range []string{"a", "b", "c"} {
		id, ok := index.Search(word)
		require.True(t, ok)
		assert.Equal(t, UserTermIDStart+int32(i), id)
		assert.Equal(t, float32(i+1), cost.Get(i))
	}

	assert.ErrorIs(t, s.SetUserDictionaryMap(nil), perrors.ErrCorruption)
}

func TestSetUserDictionaryMapTrimmedCollisions(t *testing.T) {
	s := NewStore(t.TempDir())

	for i := 0; i < 20; i++ {
		require.NoError(t, s.SetUserDictionaryMap(map[string]float32{"a ": 3, "a": 2, " a": 1, "b": 4}))
		index, cost, err := s.UserDictionary()
		require.NoError(t, err)
		assert.Equal(t, 2, cost.Len())

		id, ok := index.Search("a")
		require.True(t, ok)
		assert.Equal(t, float32(1), cost.Get(int(id-UserTermIDStart)))
	}
}
