package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// HTTP posts the sentence as text/plain to a checker service and expects
// the markup as the response body.
type HTTP struct {
	Endpoint  string
	Client    *http.Client
	Header    http.Header
	MaxOutput int64
	Norm      Normalization
}

// NewHTTP creates an HTTP checker for endpoint.
func NewHTTP(endpoint string, norm Normalization) (*HTTP, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("checker: endpoint %q is not an http(s) URL", endpoint)
	}
	return &HTTP{
		Endpoint: endpoint,
		Client:   &http.Client{},
		Norm:     norm,
	}, nil
}

func (h *HTTP) String() string {
	return h.Endpoint
}

func (h *HTTP) Normalization() Normalization {
	return h.Norm
}

func (h *HTTP) Check(ctx context.Context, text string) (string, error) {
	limit := h.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, strings.NewReader(text))
	if err != nil {
		return "", &InvocationError{Op: "http", Err: fmt.Errorf("create request: %w", err)}
	}
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &InvocationError{Op: "http", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &InvocationError{Op: "http", ExitCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &InvocationError{
			Op:       "http",
			ExitCode: resp.StatusCode,
			Stderr:   tail(string(body), stderrTail),
			Err:      errors.New(resp.Status),
		}
	}
	if int64(len(body)) > limit {
		return "", &InvocationError{Op: "http", ExitCode: resp.StatusCode, Err: fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, limit)}
	}
	if !utf8.Valid(body) {
		return "", &InvocationError{Op: "http", ExitCode: resp.StatusCode, Err: ErrInvalidUTF8}
	}
	return strings.TrimRight(string(body), "\r\n"), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
