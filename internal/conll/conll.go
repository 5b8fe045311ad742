// Package conll reads POS-tagged input and reads and writes CoNLL-X
// dependency rows.
package conll

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
)

// Sentence is one CoNLL-X block. Heads use depparse indexing: 0-based token
// positions with depparse.Root for the root.
type Sentence struct {
	Tokens []string
	Tags   []string
	Heads  []int
	Labels []string
}

// ParseTagged splits a whitespace separated line of word_TAG or word/TAG
// items. The separator is the last '_' or '/' in each item.
func ParseTagged(line string) (tokens, tags []string, err error) {
	for _, item := range strings.Fields(line) {
		i := strings.LastIndexAny(item, "_/")
		if i <= 0 || i == len(item)-1 {
			return nil, nil, perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest, "item %q is not word_TAG", item)
		}
		tokens = append(tokens, item[:i])
		tags = append(tags, item[i+1:])
	}
	return tokens, tags, nil
}

// Write emits one CoNLL-X block followed by a blank line. Ids are 1-based and
// a root attachment is written as head 0.
func Write(w io.Writer, tokens, tags []string, arcs depparse.Arcs) error {
	if len(tokens) != len(tags) || len(tokens) != len(arcs) {
		return perrors.Newf(perrors.ErrInvalidInput, http.StatusBadRequest,
			"%d tokens, %d tags and %d arcs", len(tokens), len(tags), len(arcs))
	}
	bw := bufio.NewWriter(w)
	for i, tok := range tokens {
		fmt.Fprintf(bw, "%d\t%s\t_\t%s\t%s\t_\t%d\t%s\t_\t_\n",
			i+1, tok, tags[i], tags[i], arcs[i].Head+1, arcs[i].Label)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// Read parses CoNLL-X blocks separated by blank lines. Columns used: FORM (2),
// POSTAG (5), HEAD (7) and DEPREL (8).
func Read(r io.Reader) ([]Sentence, error) {
	var out []Sentence
	var cur Sentence
	flush := func() {
		if len(cur.Tokens) > 0 {
			out = append(out, cur)
		}
		cur = Sentence{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 8 {
			return nil, perrors.Corruption("reading conll", "line %d: %d columns, want at least 8", lineNo, len(cols))
		}
		id, err := strconv.Atoi(cols[0])
		if err != nil || id != len(cur.Tokens)+1 {
			return nil, perrors.Corruption("reading conll", "line %d: unexpected id %q", lineNo, cols[0])
		}
		head := depparse.Root
		if cols[6] != "_" {
			h, err := strconv.Atoi(cols[6])
			if err != nil || h < 0 {
				return nil, perrors.Corruption("reading conll", "line %d: bad head %q", lineNo, cols[6])
			}
			head = h - 1
		}
		cur.Tokens = append(cur.Tokens, cols[1])
		cur.Tags = append(cur.Tags, cols[4])
		cur.Heads = append(cur.Heads, head)
		cur.Labels = append(cur.Labels, cols[7])
	}
	if err := scanner.Err(); err != nil {
		return nil, perrors.IO("reading conll", err)
	}
	flush()
	return out, nil
}

// AttachmentScores counts unlabeled and labeled head matches of arcs against
// the gold sentence.
func AttachmentScores(gold Sentence, arcs depparse.Arcs) (unlabeled, labeled int) {
	for i, arc := range arcs {
		if i >= len(gold.Heads) {
			break
		}
		if arc.Head == gold.Heads[i] {
			unlabeled++
			if arc.Label == gold.Labels[i] {
				labeled++
			}
		}
	}
	return unlabeled, labeled
}
