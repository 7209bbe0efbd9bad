package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/medrag/internal/source"
)

func newTestFetcher(t *testing.T, mux *http.ServeMux) *Fetcher {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	return NewFetcher(&Client{Client: gh}, Repo{Owner: "acme", Name: "kb", BasePath: "docs"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetcher_ListRecursesAndFilters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/kb/contents/docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]string{
			{"type": "file", "name": "asthma.md", "path": "docs/asthma.md"},
			{"type": "file", "name": "diagram.png", "path": "docs/diagram.png"},
			{"type": "dir", "name": "cardiology", "path": "docs/cardiology"},
		})
	})
	mux.HandleFunc("/repos/acme/kb/contents/docs/cardiology", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]string{
			{"type": "file", "name": "hypertension.txt", "path": "docs/cardiology/hypertension.txt"},
		})
	})

	paths, err := newTestFetcher(t, mux).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"asthma.md", "cardiology/hypertension.txt"}, paths)
}

func TestFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/kb/contents/docs/asthma.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"type":     "file",
			"name":     "asthma.md",
			"path":     "docs/asthma.md",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# Asthma\n\nAirway inflammation.")),
			"html_url": "https://github.com/acme/kb/blob/main/docs/asthma.md",
		})
	})
	mux.HandleFunc("/repos/acme/kb/contents/docs/missing.md", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"message": "Not Found"})
	})

	f := newTestFetcher(t, mux)

	doc, err := f.Fetch(context.Background(), "asthma.md")
	require.NoError(t, err)
	assert.Equal(t, "asthma.md", doc.Path)
	assert.Equal(t, "# Asthma\n\nAirway inflammation.", doc.Content)
	assert.Equal(t, "https://github.com/acme/kb/blob/main/docs/asthma.md", doc.URL)

	_, err = f.Fetch(context.Background(), "missing.md")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestFetcher_Revision(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/kb/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "docs", r.URL.Query().Get("path"))
		writeJSON(w, []map[string]string{{"sha": "abc123"}})
	})

	rev, err := newTestFetcher(t, mux).Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", rev)
}
