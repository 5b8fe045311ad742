package depparse

import (
	"fmt"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// ActionKind is an arc-eager transition. The declaration order is also the
// tie-break order between equally scored candidates.
type ActionKind uint8

const (
	Shift ActionKind = iota
	ArcRight
	ArcLeft
	Reduce
)

func (k ActionKind) String() string {
	switch k {
	case Shift:
		return "SHIFT"
	case ArcRight:
		return "ARC-RIGHT"
	case ArcLeft:
		return "ARC-LEFT"
	case Reduce:
		return "REDUCE"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is a transition plus, for arcs, the index of its label.
type Action struct {
	Kind  ActionKind
	Label int
}

func (a Action) String() string {
	if a.Kind == ArcLeft || a.Kind == ArcRight {
		return fmt.Sprintf("%s(%d)", a.Kind, a.Label)
	}
	return a.Kind.String()
}

// actionSet maps the model's class columns onto transitions.
type actionSet struct {
	labels      []string
	shiftClass  int
	reduceClass int
	leftClass   []int
	rightClass  []int
}

// newActionSet reads class names of the forms SHIFT|SH, REDUCE|RE,
// LEFT-<label>|LA-<label> and RIGHT-<label>|RA-<label>. Labels are numbered
// in first-seen order. A model without SHIFT or REDUCE cannot finish a
// derivation and is rejected.
func newActionSet(classes []string) (*actionSet, error) {
	const op = "reading dependency model classes"
	as := &actionSet{shiftClass: -1, reduceClass: -1}
	labelIndex := make(map[string]int)
	label := func(name string) int {
		if i, ok := labelIndex[name]; ok {
			return i
		}
		i := len(as.labels)
		labelIndex[name] = i
		as.labels = append(as.labels, name)
		as.leftClass = append(as.leftClass, -1)
		as.rightClass = append(as.rightClass, -1)
		return i
	}

	for c, name := range classes {
		switch {
		case name == "SHIFT" || name == "SH":
			as.shiftClass = c
		case name == "REDUCE" || name == "RE":
			as.reduceClass = c
		default:
			kind, l, ok := splitArcClass(name)
			if !ok {
				return nil, perrors.Corruption(op, "unrecognized class %q", name)
			}
			i := label(l)
			if kind == ArcLeft {
				as.leftClass[i] = c
			} else {
				as.rightClass[i] = c
			}
		}
	}
	if as.shiftClass < 0 || as.reduceClass < 0 {
		return nil, perrors.Corruption(op, "model needs both SHIFT and REDUCE classes")
	}
	return as, nil
}

// each calls fn for every transition the model has a class for, in
// tie-break order.
func (as *actionSet) each(fn func(a Action, class int)) {
	fn(Action{Kind: Shift}, as.shiftClass)
	for l, class := range as.rightClass {
		if class >= 0 {
			fn(Action{Kind: ArcRight, Label: l}, class)
		}
	}
	for l, class := range as.leftClass {
		if class >= 0 {
			fn(Action{Kind: ArcLeft, Label: l}, class)
		}
	}
	fn(Action{Kind: Reduce}, as.reduceClass)
}

func splitArcClass(name string) (ActionKind, string, bool) {
	for _, p := range []struct {
		prefix string
		kind   ActionKind
	}{
		{"LEFT-", ArcLeft},
		{"LA-", ArcLeft},
		{"RIGHT-", ArcRight},
		{"RA-", ArcRight},
	} {
		if l, ok := strings.CutPrefix(name, p.prefix); ok && l != "" {
			return p.kind, l, true
		}
	}
	return 0, "", false
}
