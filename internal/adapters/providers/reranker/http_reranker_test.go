package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReranker_CohereStyle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "laksa", req.Query)
		assert.Len(t, req.Documents, 3)
		assert.Equal(t, "bge-reranker", req.Model)

		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.1},{"index":2,"relevance_score":0.9},{"index":1,"relevance_score":0.5}]}`))
	}))
	defer server.Close()

	r := NewHTTPReranker(server.URL+"/", "key", "bge-reranker", server.Client())
	scores, err := r.Rerank(context.Background(), "laksa", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, 2, scores[0].Index)
	assert.Equal(t, 1, scores[1].Index)
	assert.Equal(t, 0, scores[2].Index)
	assert.InDelta(t, 0.9, scores[0].Score, 1e-9)
}

func TestHTTPReranker_TEIArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":1,"score":0.8},{"index":0,"score":0.2}]`))
	}))
	defer server.Close()

	r := NewHTTPReranker(server.URL, "", "", server.Client())
	scores, err := r.Rerank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].Index)
}

func TestHTTPReranker_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := NewHTTPReranker(server.URL, "", "", server.Client())
	_, err := r.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	outOfRange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.3}]}`))
	}))
	defer outOfRange.Close()

	r = NewHTTPReranker(outOfRange.URL, "", "", outOfRange.Client())
	_, err = r.Rerank(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
}

func TestHTTPReranker_NoDocumentsSkipsCall(t *testing.T) {
	r := NewHTTPReranker("http://127.0.0.1:1", "", "", nil)
	scores, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}
