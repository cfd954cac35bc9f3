// Package checker talks to the grammar checker under test. A Checker takes
// one UTF-8 sentence and returns the checker's inline markup for it.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Checker runs the grammar checker on a single sentence.
type Checker interface {
	// Check returns the markup the checker produced for text. Any failure to
	// obtain it is reported as an *InvocationError.
	Check(ctx context.Context, text string) (string, error)
	// Normalization declares how the checker rewrites its input text before
	// analysing it. Expected spans are remapped through it.
	Normalization() Normalization
}

var (
	// ErrOutputTooLarge is wrapped when the checker output exceeds the limit.
	ErrOutputTooLarge = errors.New("checker output exceeds size limit")
	// ErrInvalidUTF8 is wrapped when the checker output is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("checker output is not valid UTF-8")
)

// InvocationError reports a checker call that produced no usable output.
type InvocationError struct {
	Op       string // "exec", "http"
	ExitCode int    // process exit code or HTTP status, 0 if not applicable
	Stderr   string // tail of the process stderr or response body
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "checker %s", e.Op)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was cut short by its deadline.
func (e *InvocationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Func adapts a function to the Checker interface.
type Func struct {
	Fn   func(ctx context.Context, text string) (string, error)
	Norm Normalization
}

func (f Func) Check(ctx context.Context, text string) (string, error) {
	out, err := f.Fn(ctx, text)
	if err != nil {
		var ie *InvocationError
		if errors.As(err, &ie) {
			return "", err
		}
		return "", &InvocationError{Op: "func", Err: err}
	}
	return out, nil
}

func (f Func) Normalization() Normalization {
	return f.Norm
}
