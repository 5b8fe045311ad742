package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/cache"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainParser attaches every token to the next one and the last to the root.
type chainParser struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *chainParser) Execute(_ context.Context, tokens, tags []string) (*executor.ParseResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	arcs := make(depparse.Arcs, len(tokens))
	for i := range arcs {
		arcs[i] = depparse.Arc{Head: i + 1, Label: "dep"}
	}
	if len(arcs) > 0 {
		arcs[len(arcs)-1] = depparse.Arc{Head: depparse.Root, Label: "root"}
	}
	return &executor.ParseResult{Tokens: tokens, Tags: tags, Arcs: arcs, Parser: p.Kind(), BeamSize: p.BeamSize()}, nil
}

func (p *chainParser) Validate(tokens, tags []string) error {
	if len(tokens) != len(tags) {
		return perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest, "tokens and tags differ in length")
	}
	return nil
}

func (p *chainParser) Kind() string  { return depparse.KindBeam }
func (p *chainParser) BeamSize() int { return 3 }

type fakeStore struct {
	dict map[string]float32
	err  error
}

func (s *fakeStore) Dir() string      { return "/models" }
func (s *fakeStore) Loaded() []string { return []string{"dependency_model"} }

func (s *fakeStore) SetUserDictionaryMap(entries map[string]float32) error {
	if s.err != nil {
		return s.err
	}
	s.dict = entries
	return nil
}

type fakeRepo struct {
	rows    map[string]float32
	loadErr error
}

func (r *fakeRepo) Load(context.Context) (map[string]float32, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := make(map[string]float32, len(r.rows))
	for k, v := range r.rows {
		out[k] = v
	}
	return out, nil
}

func (r *fakeRepo) Upsert(_ context.Context, entries map[string]float32) error {
	for k, v := range entries {
		r.rows[k] = v
	}
	return nil
}

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) FlushByPattern(context.Context, string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(len(b.data))
	b.data = map[string][]byte{}
	return n, nil
}

type fixture struct {
	parser *chainParser
	store  *fakeStore
	repo   *fakeRepo
	cache  *cache.ParseCache
	mux    *http.ServeMux
}

func newFixture(withCache, withRepo bool) *fixture {
	f := &fixture{parser: &chainParser{}, store: &fakeStore{}}
	var dict DictionaryRepository
	if withRepo {
		f.repo = &fakeRepo{rows: map[string]float32{"云计算": 5}}
		dict = f.repo
	}
	if withCache {
		f.cache = cache.New(&memBackend{data: map[string][]byte{}}, time.Minute, nil)
	}
	f.mux = http.NewServeMux()
	New(f.parser, f.store, f.cache, dict).Register(f.mux)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestParseTokensAndTags(t *testing.T) {
	f := newFixture(false, false)
	rec := f.do(http.MethodPost, "/api/v1/parse", `{"tokens":["我","爱","北京"],"tags":["PN","VV","NR"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result executor.ParseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, depparse.Arcs{{Head: 1, Label: "dep"}, {Head: 2, Label: "dep"}, {Head: depparse.Root, Label: "root"}}, result.Arcs)
	assert.Equal(t, depparse.KindBeam, result.Parser)
	assert.Equal(t, 3, result.BeamSize)
}

func TestParseTaggedSentenceAsConll(t *testing.T) {
	f := newFixture(false, false)
	rec := f.do(http.MethodPost, "/api/v1/parse?format=conll", `{"sentence":"我_PN 爱_VV"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"1\t我\t_\tPN\tPN\t_\t2\tdep\t_\t_\n"+
			"2\t爱\t_\tVV\tVV\t_\t0\troot\t_\t_\n\n",
		rec.Body.String())
}

func TestParseRejectsBadRequests(t *testing.T) {
	f := newFixture(false, false)
	cases := map[string]string{
		"empty body":    ``,
		"malformed":     `{"tokens":`,
		"unknown field": `{"words":["我"]}`,
		"mismatch":      `{"tokens":["我","爱"],"tags":["PN"]}`,
		"bad sentence":  `{"sentence":"我PN"}`,
		"both forms":    `{"sentence":"我_PN","tokens":["我"],"tags":["PN"]}`,
	}
	for name, body := range cases {
		rec := f.do(http.MethodPost, "/api/v1/parse", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.NotEmpty(t, decode(t, rec)["error"], name)
	}
	assert.Zero(t, f.parser.calls)
}

func TestParseMapsExecutorErrors(t *testing.T) {
	f := newFixture(false, false)
	f.parser.err = perrors.Wrap(perrors.ErrTimeout, "parsing", context.Canceled)
	rec := f.do(http.MethodPost, "/api/v1/parse", `{"tokens":["我"],"tags":["PN"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.parser.err = errors.New("index out of range")
	rec = f.do(http.MethodPost, "/api/v1/parse", `{"tokens":["我"],"tags":["PN"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])
}

func TestParseUsesCache(t *testing.T) {
	f := newFixture(true, false)
	body := `{"tokens":["我","爱"],"tags":["PN","VV"]}`
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/parse", body).Code)
	}
	assert.Equal(t, 1, f.parser.calls)

	stats := decode(t, f.do(http.MethodGet, "/api/v1/cache/stats", ""))
	assert.Equal(t, 2.0, stats["hits"])
	assert.Equal(t, 1.0, stats["misses"])
	assert.Equal(t, "66.7%", stats["hit_rate"])

	rec := f.do(http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["keys_deleted"])

	f.do(http.MethodPost, "/api/v1/parse", body)
	assert.Equal(t, 2, f.parser.calls)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := newFixture(false, false)
	assert.Equal(t, "disabled", decode(t, f.do(http.MethodGet, "/api/v1/cache/stats", ""))["status"])
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/cache/invalidate", "").Code)
}

func TestModels(t *testing.T) {
	f := newFixture(false, false)
	rec := f.do(http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/models", body["dir"])
	assert.Equal(t, []any{"dependency_model"}, body["loaded"])
	assert.Equal(t, depparse.KindBeam, body["parser"])
	assert.Equal(t, 3.0, body["beam_size"])
}

func TestUpdateUserDictionaryInMemory(t *testing.T) {
	f := newFixture(false, false)
	rec := f.do(http.MethodPut, "/api/v1/userdict", `{"大数据":18}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]float32{"大数据": 18}, f.store.dict)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/v1/userdict", `{}`).Code)
}

func TestUpdateUserDictionaryPersistsAndInvalidates(t *testing.T) {
	f := newFixture(true, true)
	f.do(http.MethodPost, "/api/v1/parse", `{"tokens":["我"],"tags":["PN"]}`)

	rec := f.do(http.MethodPut, "/api/v1/userdict", `{"大数据":18}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["entries"])
	assert.Equal(t, map[string]float32{"云计算": 5, "大数据": 18}, f.store.dict)
	assert.Equal(t, map[string]float32{"云计算": 5, "大数据": 18}, f.repo.rows)

	f.do(http.MethodPost, "/api/v1/parse", `{"tokens":["我"],"tags":["PN"]}`)
	assert.Equal(t, 2, f.parser.calls)
}

func TestUpdateUserDictionarySurfacesStoreErrors(t *testing.T) {
	f := newFixture(false, false)
	f.store.err = perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest, "word is not valid UTF-8")
	rec := f.do(http.MethodPut, "/api/v1/userdict", `{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "word is not valid UTF-8", decode(t, rec)["error"])
}

func TestReloadUserDictionary(t *testing.T) {
	f := newFixture(false, false)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/userdict/reload", "").Code)

	f = newFixture(false, true)
	rec := f.do(http.MethodPost, "/api/v1/userdict/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]float32{"云计算": 5}, f.store.dict)

	f.repo.loadErr = perrors.Wrap(perrors.ErrUpstream, "loading user dictionary", errors.New("connection refused"))
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/userdict/reload", "").Code)
}
