package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/depparse"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	perrors "github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rootParser struct{}

func (rootParser) Execute(_ context.Context, tokens, tags []string) (*executor.ParseResult, error) {
	if len(tokens) != len(tags) {
		return nil, perrors.New(perrors.ErrInvalidInput, 400, "got mismatched tokens and tags")
	}
	arcs := make(depparse.Arcs, len(tokens))
	for i := range arcs {
		arcs[i] = depparse.Arc{Head: depparse.Root, Label: "ROOT"}
	}
	return &executor.ParseResult{Tokens: tokens, Tags: tags, Arcs: arcs, Parser: depparse.KindGreedy, BeamSize: 1}, nil
}

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestHandleMessagePublishesArcs(t *testing.T) {
	pub := &recordingPublisher{}
	handle := HandleMessage(rootParser{}, pub)

	err := handle(context.Background(), []byte("k"), []byte(`{"id":"req-1","tokens":["好"],"tags":["VA"]}`))
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "req-1", pub.events[0].Key)

	result := pub.events[0].Value.(ParseResult)
	assert.Equal(t, "req-1", result.ID)
	assert.Equal(t, depparse.Arcs{{Head: depparse.Root, Label: "ROOT"}}, result.Arcs)
	assert.Equal(t, depparse.KindGreedy, result.Parser)
	assert.Empty(t, result.Error)
	assert.False(t, result.ParsedAt.IsZero())
}

func TestHandleMessagePublishesParseErrors(t *testing.T) {
	pub := &recordingPublisher{}
	handle := HandleMessage(rootParser{}, pub)

	err := handle(context.Background(), nil, []byte(`{"id":"req-2","tokens":["好","的"],"tags":["VA"]}`))
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	result := pub.events[0].Value.(ParseResult)
	assert.Contains(t, result.Error, "mismatched")
	assert.Nil(t, result.Arcs)
}

func TestHandleMessageSkipsUndecodable(t *testing.T) {
	pub := &recordingPublisher{}
	handle := HandleMessage(rootParser{}, pub)

	assert.NoError(t, handle(context.Background(), []byte("k"), []byte(`not json`)))
	assert.Empty(t, pub.events)
}

func TestHandleMessageFillsMissingID(t *testing.T) {
	pub := &recordingPublisher{}
	handle := HandleMessage(rootParser{}, pub)

	require.NoError(t, handle(context.Background(), []byte("from-key"), []byte(`{"tokens":[],"tags":[]}`)))
	require.NoError(t, handle(context.Background(), nil, []byte(`{"tokens":[],"tags":[]}`)))
	require.Len(t, pub.events, 2)
	assert.Equal(t, "from-key", pub.events[0].Key)
	_, err := uuid.Parse(pub.events[1].Key)
	assert.NoError(t, err)
}

func TestHandleMessageRetriesFailedPublish(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	handle := HandleMessage(rootParser{}, pub)

	err := handle(context.Background(), nil, []byte(`{"id":"req-3","tokens":["好"],"tags":["VA"]}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "req-3")
}
