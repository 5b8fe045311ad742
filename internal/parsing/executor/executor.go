// Package executor runs dependency parses for the service layer. Parsers are
// not safe for concurrent use, so the executor keeps a pool of them and hands
// one to each in-flight request.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/config"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/metrics"
)

type ParseResult struct {
	Tokens   []string      `json:"tokens"`
	Tags     []string      `json:"tags"`
	Arcs     depparse.Arcs `json:"arcs"`
	Parser   string        `json:"parser"`
	BeamSize int           `json:"beam_size"`
}

type Executor struct {
	src       depparse.Source
	cfg       config.ParserConfig
	parserCfg depparse.Config
	pool      sync.Pool
	beamSize  int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an executor and builds its first parser, so a missing or
// corrupt dependency model is reported at startup.
func New(src depparse.Source, cfg config.ParserConfig, m *metrics.Metrics) (*Executor, error) {
	e := &Executor{
		src:       src,
		cfg:       cfg,
		parserCfg: depparse.Config{BeamSize: cfg.BeamSize, RootLabel: cfg.RootLabel},
		metrics:   m,
		logger:    slog.Default().With("component", "parse-executor"),
	}
	p, err := e.newParser()
	if err != nil {
		return nil, err
	}
	e.beamSize = p.BeamSize()
	e.pool.Put(p)
	e.logger.Info("parse executor ready",
		"parser", p.Kind(),
		"beam_size", p.BeamSize(),
		"labels", len(p.Labels()),
	)
	return e, nil
}

func (e *Executor) newParser() (*depparse.Parser, error) {
	p, err := depparse.New(e.cfg.Kind, e.src, e.parserCfg)
	if err != nil {
		return nil, fmt.Errorf("building parser: %w", err)
	}
	return p, nil
}

func (e *Executor) acquire() (*depparse.Parser, error) {
	if p, ok := e.pool.Get().(*depparse.Parser); ok {
		return p, nil
	}
	return e.newParser()
}

// Kind returns the configured parser kind.
func (e *Executor) Kind() string {
	if e.cfg.Kind == "" {
		return depparse.KindBeam
	}
	return e.cfg.Kind
}

// BeamSize returns the effective beam size of the pooled parsers.
func (e *Executor) BeamSize() int {
	return e.beamSize
}

// Validate checks a request without parsing it.
func (e *Executor) Validate(tokens, tags []string) error {
	if len(tokens) != len(tags) {
		return perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest,
			"got %d tokens but %d tags", len(tokens), len(tags))
	}
	if e.cfg.MaxSentenceLength > 0 && len(tokens) > e.cfg.MaxSentenceLength {
		return perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest,
			"sentence has %d tokens, limit is %d", len(tokens), e.cfg.MaxSentenceLength)
	}
	return nil
}

// Execute parses one tagged sentence.
func (e *Executor) Execute(ctx context.Context, tokens, tags []string) (*ParseResult, error) {
	start := time.Now()
	if err := e.Validate(tokens, tags); err != nil {
		e.metrics.ObserveParse("invalid", len(tokens), time.Since(start))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveParse("cancelled", len(tokens), time.Since(start))
		return nil, perrors.Wrap(perrors.ErrTimeout, "parsing", err)
	}

	p, err := e.acquire()
	if err != nil {
		e.metrics.ObserveParse("error", len(tokens), time.Since(start))
		return nil, err
	}
	defer e.pool.Put(p)

	result := &ParseResult{
		Tokens:   tokens,
		Tags:     tags,
		Parser:   e.Kind(),
		BeamSize: p.BeamSize(),
	}
	if err := p.Parse(&result.Arcs, tokens, tags); err != nil {
		e.metrics.ObserveParse("error", len(tokens), time.Since(start))
		return nil, fmt.Errorf("parsing sentence: %w", err)
	}
	if result.Arcs == nil {
		result.Arcs = depparse.Arcs{}
	}
	took := time.Since(start)
	e.metrics.ObserveParse("ok", len(tokens), took)
	e.logger.Debug("sentence parsed", "tokens", len(tokens), "duration", took)
	return result, nil
}
