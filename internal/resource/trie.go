package resource

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// TrieIndex maps words to int32 ids through a rune trie flattened into two
// arrays. Children of a node are stored contiguously in edges, sorted by rune,
// so lookup is a binary search per character.
type TrieIndex struct {
	nodes []trieNode
	edges []trieEdge
	size  int
}

type trieNode struct {
	first    int32
	count    int32
	value    int32
	terminal bool
}

type trieEdge struct {
	r  rune
	to int32
}

type buildNode struct {
	children map[rune]*buildNode
	value    int32
	terminal bool
}

// BuildTrieIndex builds an index from word -> id pairs. Empty words are
// rejected.
func BuildTrieIndex(entries map[string]int32) (*TrieIndex, error) {
	root := &buildNode{}
	for word, id := range entries {
		if word == "" {
			return nil, fmt.Errorf("empty word in trie entries")
		}
		n := root
		for _, r := range word {
			if n.children == nil {
				n.children = make(map[rune]*buildNode)
			}
			child, ok := n.children[r]
			if !ok {
				child = &buildNode{}
				n.children[r] = child
			}
			n = child
		}
		n.value = id
		n.terminal = true
	}

	t := &TrieIndex{size: len(entries)}
	queue := []*buildNode{root}
	t.nodes = append(t.nodes, trieNode{value: root.value, terminal: root.terminal})
	for i := 0; i < len(queue); i++ {
		n := queue[i]
		runes := make([]rune, 0, len(n.children))
		for r := range n.children {
			runes = append(runes, r)
		}
		sort.Slice(runes, func(a, b int) bool { return runes[a] < runes[b] })

		t.nodes[i].first = int32(len(t.edges))
		t.nodes[i].count = int32(len(runes))
		for _, r := range runes {
			child := n.children[r]
			t.edges = append(t.edges, trieEdge{r: r, to: int32(len(t.nodes))})
			t.nodes = append(t.nodes, trieNode{value: child.value, terminal: child.terminal})
			queue = append(queue, child)
		}
	}
	return t, nil
}

// LoadTrieIndex reads a text index: one entry per line, either "word<TAB>id"
// or a bare word, which takes the next ordinal as its id. Duplicate words,
// malformed ids and files without entries are corruption.
func LoadTrieIndex(path string) (*TrieIndex, error) {
	op := "loading " + filepath.Base(path)
	entries := make(map[string]int32)
	err := ScanLines(path, func(lineNo int, line string) error {
		word, idText, hasID := strings.Cut(line, "\t")
		word = strings.TrimSpace(word)
		id := int32(len(entries))
		if hasID {
			v, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 32)
			if err != nil {
				return perrors.Corruption(op, "line %d: bad id %q", lineNo, idText)
			}
			id = int32(v)
		}
		if _, dup := entries[word]; dup {
			return perrors.Corruption(op, "line %d: duplicate word %q", lineNo, word)
		}
		entries[word] = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, perrors.Corruption(op, "index has no entries")
	}
	t, err := BuildTrieIndex(entries)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCorruption, op, err)
	}
	return t, nil
}

// Search returns the id of word.
func (t *TrieIndex) Search(word string) (int32, bool) {
	n := int32(0)
	for _, r := range word {
		next, ok := t.step(n, r)
		if !ok {
			return 0, false
		}
		n = next
	}
	node := t.nodes[n]
	if !node.terminal {
		return 0, false
	}
	return node.value, true
}

// Contains reports whether word is in the index.
func (t *TrieIndex) Contains(word string) bool {
	_, ok := t.Search(word)
	return ok
}

// PrefixMatches calls fn for every indexed word that starts at text[start],
// shortest first. end is the exclusive rune offset of the match.
func (t *TrieIndex) PrefixMatches(text []rune, start int, fn func(end int, id int32)) {
	n := int32(0)
	for i := start; i < len(text); i++ {
		next, ok := t.step(n, text[i])
		if !ok {
			return
		}
		n = next
		if node := t.nodes[n]; node.terminal {
			fn(i+1, node.value)
		}
	}
}

// Len returns the number of words in the index.
func (t *TrieIndex) Len() int {
	return t.size
}

func (t *TrieIndex) step(n int32, r rune) (int32, bool) {
	node := t.nodes[n]
	edges := t.edges[node.first : node.first+node.count]
	i := sort.Search(len(edges), func(i int) bool { return edges[i].r >= r })
	if i < len(edges) && edges[i].r == r {
		return edges[i].to, true
	}
	return 0, false
}
