// Package depparse implements a beam-search arc-eager transition dependency
// parser driven by a multiclass linear model and a list of feature
// templates.
//
// A parse starts from a single state with the root on the stack and every
// token in the buffer. Each step scores all legal transitions of every beam
// state, ranks the successors by cumulative score and keeps the best
// BeamSize. Equal scores are ordered by parent beam position, then action
// kind (SHIFT, ARC-RIGHT, ARC-LEFT, REDUCE), then label index, so parsing is
// deterministic. Every derivation takes exactly 2N transitions for N tokens.
//
// A Parser reuses its buffers between calls and must not be shared between
// goroutines.
package depparse

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/resource"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// Parser kinds selectable by configuration.
const (
	KindBeam   = "beam"
	KindGreedy = "greedy"
)

const DefaultRootLabel = "ROOT"

// Model scores transition classes from a feature list. Score overwrites
// scores, which has one entry per class.
type Model interface {
	Classes() []string
	Score(features []string, scores []float64)
}

// Source supplies the resources a parser is built from. *model.Store
// implements it.
type Source interface {
	DependencyModel() (*resource.MaxentModel, error)
	DependencyTemplate() ([]string, error)
}

// Arc is the head and relation label of one token.
type Arc struct {
	Head  int    `json:"head"`
	Label string `json:"label"`
}

type Arcs []Arc

type Config struct {
	BeamSize  int
	RootLabel string
}

type candidate struct {
	score  float64
	parent int
	action Action
}

type Parser struct {
	kind      string
	model     Model
	actions   *actionSet
	fx        featureExtractor
	beamSize  int
	rootLabel string

	pool   StatePool
	beam   []int
	next   []int
	cands  []candidate
	scores []float64

	// onApply, when set, observes each state just before a transition is
	// applied to it.
	onApply func(s *State, a Action)
}

// New builds a parser of the given kind from the store's dependency model and
// feature templates. The greedy kind is a beam of one. Resource load failures
// are returned here, before any parse.
func New(kind string, src Source, cfg Config) (*Parser, error) {
	switch kind {
	case KindBeam, "":
		kind = KindBeam
	case KindGreedy:
		cfg.BeamSize = 1
	default:
		return nil, perrors.Wrap(perrors.ErrInvalidInput, "creating parser", fmt.Errorf("unknown parser kind %q", kind))
	}

	m, err := src.DependencyModel()
	if err != nil {
		return nil, fmt.Errorf("creating %s parser: %w", kind, err)
	}
	templates, err := src.DependencyTemplate()
	if err != nil {
		return nil, fmt.Errorf("creating %s parser: %w", kind, err)
	}
	p, err := NewParser(m, templates, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s parser: %w", kind, err)
	}
	p.kind = kind
	return p, nil
}

// NewParser builds a beam parser over an arbitrary model.
func NewParser(m Model, templates []string, cfg Config) (*Parser, error) {
	if cfg.BeamSize <= 0 {
		return nil, perrors.Wrap(perrors.ErrInvalidInput, "creating parser", fmt.Errorf("beam size must be positive, got %d", cfg.BeamSize))
	}
	if cfg.RootLabel == "" {
		cfg.RootLabel = DefaultRootLabel
	}
	actions, err := newActionSet(m.Classes())
	if err != nil {
		return nil, err
	}
	compiled, err := compileTemplates(templates)
	if err != nil {
		return nil, err
	}
	kind := KindBeam
	if cfg.BeamSize == 1 {
		kind = KindGreedy
	}
	return &Parser{
		kind:      kind,
		model:     m,
		actions:   actions,
		fx:        featureExtractor{templates: compiled, labels: actions.labels},
		beamSize:  cfg.BeamSize,
		rootLabel: cfg.RootLabel,
		scores:    make([]float64, len(m.Classes())),
	}, nil
}

func (p *Parser) Kind() string { return p.kind }

func (p *Parser) BeamSize() int { return p.beamSize }

// Labels returns the relation labels known to the model.
func (p *Parser) Labels() []string { return p.actions.labels }

// Parse writes one arc per token into out, replacing its contents. Tokens
// left without a head are attached to Root with the root label. tokens and
// tags must have the same length; that is the only error.
func (p *Parser) Parse(out *Arcs, tokens, tags []string) error {
	if len(tokens) != len(tags) {
		return perrors.Wrap(perrors.ErrInvalidInput, "parsing",
			fmt.Errorf("%d tokens but %d tags", len(tokens), len(tags)))
	}
	*out = (*out)[:0]
	n := len(tokens)
	if n == 0 {
		return nil
	}

	p.pool.Reset()
	start := p.pool.Alloc()
	p.pool.Get(start).init(n)
	p.beam = append(p.beam[:0], start)

	// Every derivation takes exactly 2n transitions, so the whole beam
	// becomes terminal on the same step.
	for step := 0; step < 2*n; step++ {
		p.expand(tokens, tags)
		if len(p.cands) == 0 {
			return perrors.Wrap(perrors.ErrInternal, "parsing", fmt.Errorf("no legal transition"))
		}
		slices.SortStableFunc(p.cands, func(a, b candidate) int {
			return cmp.Compare(b.score, a.score)
		})
		if len(p.cands) > p.beamSize {
			p.cands = p.cands[:p.beamSize]
		}
		p.advance()
	}

	best := p.pool.Get(p.beam[0])
	for tok := 0; tok < n; tok++ {
		head, ok := best.Head(tok)
		if !ok {
			*out = append(*out, Arc{Head: Root, Label: p.rootLabel})
			continue
		}
		*out = append(*out, Arc{Head: head, Label: p.actions.labels[best.labels[tok+1]]})
	}
	return nil
}

// expand collects the legal successors of every beam state, in tie-break
// order.
func (p *Parser) expand(tokens, tags []string) {
	p.cands = p.cands[:0]
	for bi, si := range p.beam {
		s := p.pool.Get(si)
		p.model.Score(p.fx.extract(s, tokens, tags), p.scores)
		p.actions.each(func(a Action, class int) {
			if s.Legal(a) {
				p.cands = append(p.cands, candidate{score: s.score + p.scores[class], parent: bi, action: a})
			}
		})
	}
}

// advance materialises the surviving candidates as the new beam and frees the
// old one.
func (p *Parser) advance() {
	p.next = p.next[:0]
	for _, c := range p.cands {
		i := p.pool.Alloc()
		s := p.pool.Get(i)
		s.copyFrom(p.pool.Get(p.beam[c.parent]))
		if p.onApply != nil {
			p.onApply(s, c.action)
		}
		s.apply(c.action)
		s.score = c.score
		s.parent = c.parent
		p.next = append(p.next, i)
	}
	for _, i := range p.beam {
		p.pool.Free(i)
	}
	p.beam, p.next = p.next, p.beam
}
