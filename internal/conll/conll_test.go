package conll

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTagged(t *testing.T) {
	tokens, tags, err := ParseTagged("  我_PN 爱/VV  3/4_CD ")
	require.NoError(t, err)
	assert.Equal(t, []string{"我", "爱", "3/4"}, tokens)
	assert.Equal(t, []string{"PN", "VV", "CD"}, tags)

	tokens, tags, err = ParseTagged("   ")
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Empty(t, tags)

	for _, bad := range []string{"我", "_PN", "我_"} {
		_, _, err := ParseTagged(bad)
		assert.ErrorIs(t, err, perrors.ErrInvalidInput, bad)
	}
}

func TestWriteThenRead(t *testing.T) {
	tokens := []string{"我", "爱", "北京"}
	tags := []string{"PN", "VV", "NR"}
	arcs := depparse.Arcs{{Head: 1, Label: "nsubj"}, {Head: depparse.Root, Label: "root"}, {Head: 1, Label: "dobj"}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tokens, tags, arcs))
	assert.Equal(t,
		"1\t我\t_\tPN\tPN\t_\t2\tnsubj\t_\t_\n"+
			"2\t爱\t_\tVV\tVV\t_\t0\troot\t_\t_\n"+
			"3\t北京\t_\tNR\tNR\t_\t2\tdobj\t_\t_\n\n",
		buf.String())

	sentences, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, sentences, 1)
	assert.Equal(t, tokens, sentences[0].Tokens)
	assert.Equal(t, tags, sentences[0].Tags)
	assert.Equal(t, []int{1, depparse.Root, 1}, sentences[0].Heads)

	u, l := AttachmentScores(sentences[0], depparse.Arcs{{Head: 1, Label: "nsubj"}, {Head: depparse.Root, Label: "ROOT"}, {Head: 0, Label: "dobj"}})
	assert.Equal(t, 2, u)
	assert.Equal(t, 1, l)
}

func TestReadMultipleBlocks(t *testing.T) {
	input := "# sent 1\n1\t好\t_\tVA\tVA\t_\t0\troot\t_\t_\n\n\n" +
		"1\t他\t_\tPN\tPN\t_\t2\tnsubj\t_\t_\n2\t来\t_\tVV\tVV\t_\t0\troot\t_\t_\n"
	sentences, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, []string{"他", "来"}, sentences[1].Tokens)
}

func TestReadRejectsMalformedRows(t *testing.T) {
	for _, input := range []string{
		"1\t我\t_\tPN\n",
		"2\t我\t_\tPN\tPN\t_\t0\troot\n",
		"1\t我\t_\tPN\tPN\t_\tx\troot\n",
	} {
		_, err := Read(strings.NewReader(input))
		assert.ErrorIs(t, err, perrors.ErrCorruption)
	}
}

func TestWriteRejectsMisalignedInput(t *testing.T) {
	err := Write(&bytes.Buffer{}, []string{"我"}, []string{"PN"}, nil)
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
}
