package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/conll"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/cache"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/logger"
)

const maxBodyBytes = 1 << 20

type Parser interface {
	Execute(ctx context.Context, tokens, tags []string) (*executor.ParseResult, error)
	Validate(tokens, tags []string) error
	Kind() string
	BeamSize() int
}

type ModelStore interface {
	Dir() string
	Loaded() []string
	SetUserDictionaryMap(entries map[string]float32) error
}

type DictionaryRepository interface {
	Load(ctx context.Context) (map[string]float32, error)
	Upsert(ctx context.Context, entries map[string]float32) error
}

// ParseRequest carries either pre-split tokens and tags or a single
// word_TAG sentence.
type ParseRequest struct {
	Tokens   []string `json:"tokens,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Sentence string   `json:"sentence,omitempty"`
}

type Handler struct {
	parser Parser
	store  ModelStore
	cache  *cache.ParseCache
	dict   DictionaryRepository
	logger *slog.Logger
}

// New builds the handler. parseCache and dict may be nil when Redis or
// PostgreSQL are disabled.
func New(parser Parser, store ModelStore, parseCache *cache.ParseCache, dict DictionaryRepository) *Handler {
	return &Handler{
		parser: parser,
		store:  store,
		cache:  parseCache,
		dict:   dict,
		logger: slog.Default().With("component", "parse-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/parse", h.Parse)
	mux.HandleFunc("GET /api/v1/models", h.Models)
	mux.HandleFunc("PUT /api/v1/userdict", h.UpdateUserDictionary)
	mux.HandleFunc("POST /api/v1/userdict/reload", h.ReloadUserDictionary)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ParseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	tokens, tags := req.Tokens, req.Tags
	if req.Sentence != "" {
		if len(tokens) > 0 || len(tags) > 0 {
			h.writeError(w, perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest,
				"send either sentence or tokens and tags, not both"))
			return
		}
		var err error
		if tokens, tags, err = conll.ParseTagged(req.Sentence); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if err := h.parser.Validate(tokens, tags); err != nil {
		h.writeError(w, err)
		return
	}
	if tokens == nil {
		tokens, tags = []string{}, []string{}
	}

	var result *executor.ParseResult
	var err error
	cacheHit := false
	if h.cache != nil && len(tokens) > 0 {
		key := cache.Key{Parser: h.parser.Kind(), BeamSize: h.parser.BeamSize(), Tokens: tokens, Tags: tags}
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func() (*executor.ParseResult, error) {
			return h.parser.Execute(ctx, tokens, tags)
		})
	} else {
		result, err = h.parser.Execute(ctx, tokens, tags)
	}
	if err != nil {
		log.Error("parse failed", "tokens", len(tokens), "error", err)
		h.writeError(w, err)
		return
	}

	log.Info("parse completed",
		"tokens", len(tokens),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if r.URL.Query().Get("format") == "conll" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := conll.Write(w, result.Tokens, result.Tags, result.Arcs); err != nil {
			h.logger.Error("failed to write conll response", "error", err)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	loaded := h.store.Loaded()
	if loaded == nil {
		loaded = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"dir":       h.store.Dir(),
		"loaded":    loaded,
		"parser":    h.parser.Kind(),
		"beam_size": h.parser.BeamSize(),
	})
}

// UpdateUserDictionary accepts a JSON object of word to cost. With a
// repository configured the entries are persisted and the full table is
// reinstalled; otherwise the body replaces the in-memory dictionary.
func (h *Handler) UpdateUserDictionary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var entries map[string]float32
	if err := decodeBody(r, &entries); err != nil {
		h.writeError(w, err)
		return
	}
	if len(entries) == 0 {
		h.writeError(w, perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest, "no entries supplied"))
		return
	}

	if h.dict != nil {
		if err := h.dict.Upsert(ctx, entries); err != nil {
			h.writeError(w, err)
			return
		}
		all, err := h.dict.Load(ctx)
		if err != nil {
			h.writeError(w, err)
			return
		}
		entries = all
	}
	if err := h.store.SetUserDictionaryMap(entries); err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidateAfterDictionaryChange(ctx)
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "entries": len(entries)})
}

func (h *Handler) ReloadUserDictionary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dict == nil {
		h.writeError(w, perrors.New(perrors.ErrNotConfigured, http.StatusNotFound, "user dictionary storage is disabled"))
		return
	}
	entries, err := h.dict.Load(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.SetUserDictionaryMap(entries); err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidateAfterDictionaryChange(ctx)
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "entries": len(entries)})
}

func (h *Handler) invalidateAfterDictionaryChange(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if _, err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("cache invalidation after dictionary change failed", "error", err)
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, perrors.Wrap(perrors.ErrUpstream, "invalidating cache", err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return perrors.New(perrors.ErrInvalidInput, http.StatusBadRequest, "request body is empty")
		}
		return perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest, "malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := perrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *perrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
