package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestShape(t *testing.T) {
	req := mustNewRequest(context.Background(), "http://localhost:8080/api/v1/parse", "天气_NN 很_AD 好_VA")

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(req.Header.Get(middleware.RequestIDHeader), "loadtest-"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	assert.Equal(t, map[string]string{"sentence": "天气_NN 很_AD 好_VA"}, body)
}

func TestRunLoadTestRecordsResponses(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/parse", r.URL.Path)
		assert.Equal(t, "conll", r.URL.Query().Get("format"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seen[body["sentence"]] = true
		mu.Unlock()
		if body["sentence"] == "坏_VV" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Sentences:   []string{"好_VA", "坏_VV"},
		Format:      "conll",
	})

	total := stats.totalRequests.Load()
	require.Positive(t, total)
	assert.Equal(t, total, stats.successCount.Load()+stats.errorCount.Load())
	assert.Positive(t, stats.statusCodes[http.StatusOK].Load())
	assert.Positive(t, stats.statusCodes[http.StatusBadRequest].Load())
	assert.True(t, seen["好_VA"])
	assert.True(t, seen["坏_VV"])
}

func TestReadSentencesSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentences.txt")
	require.NoError(t, os.WriteFile(path, []byte("我_PN 爱_VV\n\n  \n天气_NN 好_VA\n"), 0o644))

	got, err := readSentences(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"我_PN 爱_VV", "天气_NN 好_VA"}, got)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = readSentences(empty)
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}
