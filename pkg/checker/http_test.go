package checker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		body, _ := io.ReadAll(r.Body)
		if string(body) == "broken" {
			http.Error(w, "pipeline crashed", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "{"+string(body)+"}<spell>\n")
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, Normalization{Whitespace: true})
	require.NoError(t, err)
	h.Header = http.Header{"X-Token": []string{"secret"}}
	assert.True(t, h.Normalization().Whitespace)

	out, err := h.Check(context.Background(), "dás")
	require.NoError(t, err)
	assert.Equal(t, "{dás}<spell>", out)

	_, err = h.Check(context.Background(), "broken")
	var ie *InvocationError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, ie.ExitCode)
	assert.Contains(t, ie.Stderr, "pipeline crashed")
}

func TestHTTPOutputLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, Normalization{})
	require.NoError(t, err)
	h.MaxOutput = 4
	_, err = h.Check(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrOutputTooLarge), "got %v", err)
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h, err := NewHTTP(url, Normalization{})
	require.NoError(t, err)
	_, err = h.Check(context.Background(), "x")
	var ie *InvocationError
	assert.True(t, errors.As(err, &ie), "got %v", err)
}

func TestNewHTTPRejectsNonHTTP(t *testing.T) {
	_, err := NewHTTP("ftp://example.org", Normalization{})
	assert.Error(t, err)
}
