package errors

import (
	"errors"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapMatchesKindAndCause(t *testing.T) {
	err := IO("loading unigram.idx", fs.ErrNotExist)

	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrCorruption))
	assert.Contains(t, err.Error(), "loading unigram.idx")
}

func TestUpstreamKeepsPrerequisiteKind(t *testing.T) {
	cause := IO("loading unigram.idx", fs.ErrNotExist)
	err := Wrap(ErrUpstream, "loading tfidf.bin", cause)

	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, ErrIO))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", Wrap(ErrInvalidInput, "parse", nil), http.StatusBadRequest},
		{"not configured", Wrap(ErrNotConfigured, "user index", nil), http.StatusNotFound},
		{"corruption", Corruption("user dict", "empty"), http.StatusUnprocessableEntity},
		{"io", IO("open", fs.ErrNotExist), http.StatusServiceUnavailable},
		{"app error", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}
