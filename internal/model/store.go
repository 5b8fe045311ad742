// Package model provides the Store, the process-wide holder of the NLP model
// resources. Resources are loaded on first use from fixed filenames under the
// store directory and cached for the life of the store. A single mutex guards
// construction: callers racing for the same unloaded resource trigger exactly
// one load, and a failed load leaves the slot empty so the next call retries.
package model

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/resource"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
)

// Fixed resource filenames under the store directory.
const (
	IndexFile              = "unigram.idx"
	UnigramCostFile        = "unigram.bin"
	BigramCostFile         = "bigram.bin"
	HMMPosModelFile        = "ctb_pos.hmm"
	CRFPosModelFile        = "ctb_pos.crf"
	CRFSegModelFile        = "ctb_seg.crf"
	OOVPropertyFile        = "oov_property.idx"
	IDFModelFile           = "tfidf.bin"
	StopwordsFile          = "stopword.idx"
	DependencyModelFile    = "ctb_dep.maxent"
	DependencyTemplateFile = "depparse.templ"
)

// Resource names, as used by Warm, Loaded and the load metrics.
const (
	ResIndex           = "index"
	ResUnigramCost     = "unigram_cost"
	ResBigramCost      = "bigram_cost"
	ResHMMPosModel     = "hmm_pos_model"
	ResCRFPosModel     = "crf_pos_model"
	ResCRFSegModel     = "crf_seg_model"
	ResOOVProperty     = "oov_property"
	ResIDFModel        = "idf_model"
	ResStopwords       = "stopwords"
	ResDependencyModel = "dependency_model"
	ResUserDictionary  = "user_dictionary"
)

// Loaders builds each resource kind from a path. Tests replace individual
// loaders to count or fail constructions.
type Loaders struct {
	Trie        func(path string) (*resource.TrieIndex, error)
	StaticArray func(path string) (*resource.StaticArray, error)
	HashTable   func(path string) (*resource.StaticHashTable, error)
	CRF         func(path string) (*resource.CRFModel, error)
	HMM         func(path string) (*resource.HMMModel, error)
	Maxent      func(path string) (*resource.MaxentModel, error)
	IDF         func(path string, index *resource.TrieIndex) (*resource.StringValue, error)
}

// DefaultLoaders returns the loaders of package resource.
func DefaultLoaders() Loaders {
	return Loaders{
		Trie:        resource.LoadTrieIndex,
		StaticArray: resource.LoadStaticArray,
		HashTable:   resource.LoadStaticHashTable,
		CRF:         resource.LoadCRFModel,
		HMM:         resource.LoadHMMModel,
		Maxent:      resource.LoadMaxentModel,
		IDF:         resource.LoadStringValue,
	}
}

func (l Loaders) withDefaults() Loaders {
	d := DefaultLoaders()
	if l.Trie == nil {
		l.Trie = d.Trie
	}
	if l.StaticArray == nil {
		l.StaticArray = d.StaticArray
	}
	if l.HashTable == nil {
		l.HashTable = d.HashTable
	}
	if l.CRF == nil {
		l.CRF = d.CRF
	}
	if l.HMM == nil {
		l.HMM = d.HMM
	}
	if l.Maxent == nil {
		l.Maxent = d.Maxent
	}
	if l.IDF == nil {
		l.IDF = d.IDF
	}
	return l
}

type Store struct {
	dir     string
	loaders Loaders
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu              sync.Mutex
	index           *resource.TrieIndex
	unigramCost     *resource.StaticArray
	bigramCost      *resource.StaticHashTable
	hmmPosModel     *resource.HMMModel
	crfPosModel     *resource.CRFModel
	crfSegModel     *resource.CRFModel
	oovProperty     *resource.TrieIndex
	idfModel        *resource.StringValue
	stopwords       *resource.TrieIndex
	dependencyModel *resource.MaxentModel
	userIndex       *resource.TrieIndex
	userCost        *resource.StaticArray
}

type Option func(*Store)

// WithLoaders overrides resource construction. Nil fields keep the defaults.
func WithLoaders(l Loaders) Option {
	return func(s *Store) { s.loaders = l.withDefaults() }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store rooted at dir. Nothing is read until a
// resource is first requested.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:     dir,
		loaders: DefaultLoaders(),
		logger:  slog.Default().With("component", "model-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory resources are loaded from.
func (s *Store) Dir() string {
	return s.dir
}

// lazy returns *slot, constructing it with load on first use. Callers must
// not hold s.mu.
func lazy[T any](s *Store, slot **T, name, file string, load func(path string) (*T, error)) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *slot != nil {
		return *slot, nil
	}

	path := filepath.Join(s.dir, file)
	start := time.Now()
	v, err := load(path)
	if err == nil && v == nil {
		err = perrors.Corruption("loading "+file, "loader returned no %s", name)
	}
	took := time.Since(start)
	s.metrics.ObserveModelLoad(name, took, err)
	if err != nil {
		s.logger.Error("model resource load failed", "resource", name, "path", path, "error", err)
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	*slot = v
	s.logger.Info("model resource loaded", "resource", name, "path", path, "duration", took)
	return v, nil
}

func (s *Store) Index() (*resource.TrieIndex, error) {
	return lazy(s, &s.index, ResIndex, IndexFile, s.loaders.Trie)
}

func (s *Store) UnigramCost() (*resource.StaticArray, error) {
	return lazy(s, &s.unigramCost, ResUnigramCost, UnigramCostFile, s.loaders.StaticArray)
}

func (s *Store) BigramCost() (*resource.StaticHashTable, error) {
	return lazy(s, &s.bigramCost, ResBigramCost, BigramCostFile, s.loaders.HashTable)
}

func (s *Store) HMMPosModel() (*resource.HMMModel, error) {
	return lazy(s, &s.hmmPosModel, ResHMMPosModel, HMMPosModelFile, s.loaders.HMM)
}

func (s *Store) CRFPosModel() (*resource.CRFModel, error) {
	return lazy(s, &s.crfPosModel, ResCRFPosModel, CRFPosModelFile, s.loaders.CRF)
}

func (s *Store) CRFSegModel() (*resource.CRFModel, error) {
	return lazy(s, &s.crfSegModel, ResCRFSegModel, CRFSegModelFile, s.loaders.CRF)
}

func (s *Store) OOVProperty() (*resource.TrieIndex, error) {
	return lazy(s, &s.oovProperty, ResOOVProperty, OOVPropertyFile, s.loaders.Trie)
}

func (s *Store) Stopwords() (*resource.TrieIndex, error) {
	return lazy(s, &s.stopwords, ResStopwords, StopwordsFile, s.loaders.Trie)
}

func (s *Store) DependencyModel() (*resource.MaxentModel, error) {
	return lazy(s, &s.dependencyModel, ResDependencyModel, DependencyModelFile, s.loaders.Maxent)
}

// IDFModel loads the IDF values, which are keyed by unigram index ids. A
// failure to load the index fails the IDF load with ErrUpstream wrapping the
// index error, and leaves the IDF slot untouched.
func (s *Store) IDFModel() (*resource.StringValue, error) {
	index, err := s.Index()
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrUpstream, "loading "+ResIDFModel, err)
	}
	return lazy(s, &s.idfModel, ResIDFModel, IDFModelFile, func(path string) (*resource.StringValue, error) {
		return s.loaders.IDF(path, index)
	})
}

// DependencyTemplate reads the parser feature templates. The file is read on
// every call and the caller owns the returned slice.
func (s *Store) DependencyTemplate() ([]string, error) {
	path := filepath.Join(s.dir, DependencyTemplateFile)
	lines, err := resource.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("loading dependency template: %w", err)
	}
	if len(lines) == 0 {
		return nil, perrors.Corruption("loading dependency template", "%s has no templates", DependencyTemplateFile)
	}
	return lines, nil
}

// Warm loads the named resources in order and stops at the first failure.
func (s *Store) Warm(names ...string) error {
	getters := map[string]func() error{
		ResIndex:           func() error { _, err := s.Index(); return err },
		ResUnigramCost:     func() error { _, err := s.UnigramCost(); return err },
		ResBigramCost:      func() error { _, err := s.BigramCost(); return err },
		ResHMMPosModel:     func() error { _, err := s.HMMPosModel(); return err },
		ResCRFPosModel:     func() error { _, err := s.CRFPosModel(); return err },
		ResCRFSegModel:     func() error { _, err := s.CRFSegModel(); return err },
		ResOOVProperty:     func() error { _, err := s.OOVProperty(); return err },
		ResIDFModel:        func() error { _, err := s.IDFModel(); return err },
		ResStopwords:       func() error { _, err := s.Stopwords(); return err },
		ResDependencyModel: func() error { _, err := s.DependencyModel(); return err },
	}
	for _, name := range names {
		get, ok := getters[name]
		if !ok {
			return perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest, "unknown model resource %q", name)
		}
		if err := get(); err != nil {
			return err
		}
	}
	return nil
}

// Loaded lists the resources currently held, in a fixed order.
func (s *Store) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := []struct {
		name string
		set  bool
	}{
		{ResIndex, s.index != nil},
		{ResUnigramCost, s.unigramCost != nil},
		{ResBigramCost, s.bigramCost != nil},
		{ResHMMPosModel, s.hmmPosModel != nil},
		{ResCRFPosModel, s.crfPosModel != nil},
		{ResCRFSegModel, s.crfSegModel != nil},
		{ResOOVProperty, s.oovProperty != nil},
		{ResIDFModel, s.idfModel != nil},
		{ResStopwords, s.stopwords != nil},
		{ResDependencyModel, s.dependencyModel != nil},
		{ResUserDictionary, s.userIndex != nil},
	}
	loaded := make([]string, 0, len(slots))
	for _, slot := range slots {
		if slot.set {
			loaded = append(loaded, slot.name)
		}
	}
	return loaded
}

// Close drops every held resource. Later getter calls load again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	s.unigramCost = nil
	s.bigramCost = nil
	s.hmmPosModel = nil
	s.crfPosModel = nil
	s.crfSegModel = nil
	s.oovProperty = nil
	s.idfModel = nil
	s.stopwords = nil
	s.dependencyModel = nil
	s.userIndex = nil
	s.userCost = nil
	s.logger.Info("model store closed")
	return nil
}
