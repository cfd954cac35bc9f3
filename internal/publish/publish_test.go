package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		wantError bool
	}{
		{in: "giellalt/lang-sme", owner: "giellalt", name: "lang-sme"},
		{in: " divvun/gramtest ", owner: "divvun", name: "gramtest"},
		{in: "just-a-name", wantError: true},
		{in: "/name", wantError: true},
		{in: "owner/", wantError: true},
		{in: "a/b/c", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, name, err := SplitRepo(tt.in)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

type fakeGitHub struct {
	open     []map[string]any
	created  map[string]any
	comment  map[string]any
	authSeen string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/giellalt/lang-sme/issues", func(w http.ResponseWriter, r *http.Request) {
		f.authSeen = r.Header.Get("Authorization")
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		_ = json.NewEncoder(w).Encode(f.open)
	})
	mux.HandleFunc("POST /repos/giellalt/lang-sme/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.created))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"title":    f.created["title"],
			"html_url": "https://github.com/giellalt/lang-sme/issues/42",
		})
	})
	mux.HandleFunc("POST /repos/giellalt/lang-sme/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.comment))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       1,
			"html_url": "https://github.com/giellalt/lang-sme/issues/7#issuecomment-1",
		})
	})
	return mux
}

func TestPublishCreatesIssue(t *testing.T) {
	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, err := New("ghp_test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ref, err := p.Publish(context.Background(), "giellalt/lang-sme", Issue{
		Title:  "sme: 2 of 10 cases failing",
		Body:   "## sme",
		Labels: []string{"gramtest"},
	})
	require.NoError(t, err)

	assert.Equal(t, IssueRef{
		Repo:   "giellalt/lang-sme",
		Number: 42,
		URL:    "https://github.com/giellalt/lang-sme/issues/42",
	}, ref)
	assert.Equal(t, "Bearer ghp_test", fake.authSeen)
	assert.Equal(t, "sme: 2 of 10 cases failing", fake.created["title"])
	assert.Equal(t, "## sme", fake.created["body"])
	assert.Equal(t, []any{"gramtest"}, fake.created["labels"])
}

func TestPublishCommentsOnOpenIssue(t *testing.T) {
	fake := &fakeGitHub{open: []map[string]any{
		{"number": 3, "title": "sme: 1 of 10 cases failing"},
		{"number": 5, "title": "sme: 2 of 10 cases failing", "pull_request": map[string]any{"url": "x"}},
		{"number": 7, "title": "sme: 2 of 10 cases failing"},
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, err := New("ghp_test", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	ref, err := p.Publish(context.Background(), "giellalt/lang-sme", Issue{
		Title: "sme: 2 of 10 cases failing",
		Body:  "still failing",
	})
	require.NoError(t, err)
	assert.True(t, ref.Commented)
	assert.Equal(t, 7, ref.Number)
	assert.Equal(t, "https://github.com/giellalt/lang-sme/issues/7#issuecomment-1", ref.URL)
	assert.Equal(t, "still failing", fake.comment["body"])
	assert.Nil(t, fake.created)
}

func TestPublishValidation(t *testing.T) {
	p, err := New("ghp_test", WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), "nope", Issue{Title: "x"})
	assert.Error(t, err)

	_, err = p.Publish(context.Background(), "a/b", Issue{})
	assert.Error(t, err)
}

func TestPublishAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	p, err := New("bad", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), "giellalt/lang-sme", Issue{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list issues")
}
