package depparse

import (
	"strconv"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

const (
	noneValue = "-NONE-"
	rootValue = "-ROOT-"
)

type position uint8

const (
	posS0 position = iota
	posS1
	posS2
	posB0
	posB1
	posB2
	posS0h
	posS0l
	posS0r
	posB0l
)

var positions = map[string]position{
	"S0": posS0, "S1": posS1, "S2": posS2,
	"B0": posB0, "B1": posB1, "B2": posB2,
	"S0h": posS0h, "S0l": posS0l, "S0r": posS0r, "B0l": posB0l,
}

type attribute uint8

const (
	attrWord attribute = iota
	attrTag
	attrLabel
)

var attributes = map[string]attribute{"w": attrWord, "t": attrTag, "l": attrLabel}

type atom struct {
	pos  position
	attr attribute
}

type template struct {
	prefix string
	atoms  []atom
}

// compileTemplates parses template lines such as "S0.w+B0.t". The feature
// for template i is rendered as "<i>=<v1>|<v2>...".
func compileTemplates(lines []string) ([]template, error) {
	const op = "compiling feature templates"
	if len(lines) == 0 {
		return nil, perrors.Corruption(op, "no templates")
	}
	out := make([]template, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		tpl := template{prefix: strconv.Itoa(i) + "="}
		for _, part := range strings.Split(line, "+") {
			p, a, ok := strings.Cut(strings.TrimSpace(part), ".")
			pos, okPos := positions[p]
			attr, okAttr := attributes[a]
			if !ok || !okPos || !okAttr {
				return nil, perrors.Corruption(op, "template %d: bad atom %q", i, part)
			}
			tpl.atoms = append(tpl.atoms, atom{pos: pos, attr: attr})
		}
		out = append(out, tpl)
	}
	return out, nil
}

// featureExtractor renders the features of a state into reused buffers.
type featureExtractor struct {
	templates []template
	labels    []string
	buf       []byte
	features  []string
}

func (fx *featureExtractor) extract(s *State, tokens, tags []string) []string {
	fx.features = fx.features[:0]
	for _, tpl := range fx.templates {
		fx.buf = append(fx.buf[:0], tpl.prefix...)
		for j, a := range tpl.atoms {
			if j > 0 {
				fx.buf = append(fx.buf, '|')
			}
			fx.buf = append(fx.buf, fx.value(s, a, tokens, tags)...)
		}
		fx.features = append(fx.features, string(fx.buf))
	}
	return fx.features
}

func (fx *featureExtractor) value(s *State, a atom, tokens, tags []string) string {
	tok := resolve(s, a.pos)
	if tok == none {
		return noneValue
	}
	switch a.attr {
	case attrWord:
		if tok == Root {
			return rootValue
		}
		return tokens[tok]
	case attrTag:
		if tok == Root {
			return rootValue
		}
		return tags[tok]
	default:
		if tok == Root {
			return noneValue
		}
		if l := s.labels[tok+1]; l != none {
			return fx.labels[l]
		}
		return noneValue
	}
}

// resolve maps a template position to a token index, Root, or none.
func resolve(s *State, p position) int {
	stackAt := func(depth int) int {
		if depth >= len(s.stack) {
			return none
		}
		return s.stack[len(s.stack)-1-depth]
	}
	bufferAt := func(offset int) int {
		if s.next+offset >= s.n {
			return none
		}
		return s.next + offset
	}

	switch p {
	case posS0:
		return stackAt(0)
	case posS1:
		return stackAt(1)
	case posS2:
		return stackAt(2)
	case posB0:
		return bufferAt(0)
	case posB1:
		return bufferAt(1)
	case posB2:
		return bufferAt(2)
	case posS0h:
		s0 := stackAt(0)
		if s0 == Root {
			return none
		}
		return s.heads[s0+1]
	case posS0l:
		return s.leftmost[stackAt(0)+1]
	case posS0r:
		return s.rightmost[stackAt(0)+1]
	case posB0l:
		b0 := bufferAt(0)
		if b0 == none {
			return none
		}
		return s.leftmost[b0+1]
	}
	return none
}
