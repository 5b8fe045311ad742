package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/resource"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

const (
	// UserTermIDStart is the first id handed to user dictionary words, above
	// the base vocabulary id range.
	UserTermIDStart int32 = 1 << 30
	// DefaultUserCost applies to entries without a valid cost.
	DefaultUserCost float32 = 18.0
)

// SetUserDictionary replaces the user dictionary with the entries of a text
// file. Each non-blank line is "word" or "word<whitespace>cost"; a missing or
// malformed cost becomes DefaultUserCost. Ids run from UserTermIDStart in
// first-seen order. A repeated word keeps its first id and cost.
//
// A file without entries fails with ErrCorruption and an unreadable file with
// ErrIO; in both cases the current dictionary is kept.
func (s *Store) SetUserDictionary(path string) error {
	var words []string
	var costs []float32
	seen := make(map[string]struct{})
	err := resource.ScanLines(path, func(_ int, line string) error {
		fields := strings.Fields(line)
		word := fields[0]
		if _, dup := seen[word]; dup {
			return nil
		}
		seen[word] = struct{}{}
		cost := DefaultUserCost
		if len(fields) > 1 {
			if v, err := strconv.ParseFloat(fields[1], 32); err == nil {
				cost = float32(v)
			}
		}
		words = append(words, word)
		costs = append(costs, cost)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading user dictionary: %w", err)
	}
	if len(words) == 0 {
		return perrors.Corruption("loading user dictionary", "%s has no entries", filepath.Base(path))
	}
	return s.installUserDictionary(words, costs, path)
}

// SetUserDictionaryMap replaces the user dictionary with entries held in
// memory, for example rows loaded from the database. Ids are assigned in
// sorted word order. Keys that trim to the same word keep the cost of the
// smallest raw key.
func (s *Store) SetUserDictionaryMap(entries map[string]float32) error {
	raw := make([]string, 0, len(entries))
	for key := range entries {
		raw = append(raw, key)
	}
	sort.Strings(raw)
	byWord := make(map[string]float32, len(entries))
	for _, key := range raw {
		word := strings.TrimSpace(key)
		if word == "" {
			continue
		}
		if _, dup := byWord[word]; dup {
			continue
		}
		byWord[word] = entries[key]
	}
	if len(byWord) == 0 {
		return perrors.Corruption("loading user dictionary", "no entries")
	}
	words := make([]string, 0, len(byWord))
	for word := range byWord {
		words = append(words, word)
	}
	sort.Strings(words)
	costs := make([]float32, len(words))
	for i, word := range words {
		costs[i] = byWord[word]
	}
	return s.installUserDictionary(words, costs, "memory")
}

func (s *Store) installUserDictionary(words []string, costs []float32, source string) error {
	ids := make(map[string]int32, len(words))
	for i, word := range words {
		ids[word] = UserTermIDStart + int32(i)
	}
	index, err := resource.BuildTrieIndex(ids)
	if err != nil {
		return perrors.Wrap(perrors.ErrCorruption, "building user dictionary", err)
	}
	cost := resource.NewStaticArray(costs)

	s.mu.Lock()
	s.userIndex = index
	s.userCost = cost
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.UserDictionarySize.Set(float64(len(words)))
	}
	s.logger.Info("user dictionary installed", "source", source, "entries", len(words))
	return nil
}

// UserIndex returns the user dictionary word index.
func (s *Store) UserIndex() (*resource.TrieIndex, error) {
	index, _, err := s.UserDictionary()
	return index, err
}

// UserCost returns the user dictionary costs, indexed by id - UserTermIDStart.
func (s *Store) UserCost() (*resource.StaticArray, error) {
	_, cost, err := s.UserDictionary()
	return cost, err
}

// UserDictionary returns the index and cost array of the same installed
// dictionary.
func (s *Store) UserDictionary() (*resource.TrieIndex, *resource.StaticArray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userIndex == nil {
		return nil, nil, perrors.Wrap(perrors.ErrNotConfigured, "user dictionary", nil)
	}
	return s.userIndex, s.userCost, nil
}
