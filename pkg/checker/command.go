package checker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxOutput bounds checker output when Command.MaxOutput is zero.
const DefaultMaxOutput = 1 << 20

const (
	stderrTail = 4096
	waitDelay  = 2 * time.Second
)

// Command runs the checker as a child process: the sentence is written to
// stdin followed by a newline, and the markup is read from stdout.
type Command struct {
	Path      string
	Args      []string
	Dir       string
	Env       []string // appended to the inherited environment
	MaxOutput int64
	Norm      Normalization
}

// NewCommand creates a Command from an argument vector.
func NewCommand(argv []string, norm Normalization) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("checker: empty command")
	}
	return &Command{
		Path: argv[0],
		Args: append([]string(nil), argv[1:]...),
		Norm: norm,
	}, nil
}

// Argv returns the full command line.
func (c *Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c *Command) String() string {
	return strings.Join(c.Argv(), " ")
}

func (c *Command) Normalization() Normalization {
	return c.Norm
}

func (c *Command) Check(ctx context.Context, text string) (string, error) {
	limit := c.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Stdin = strings.NewReader(text + "\n")
	stdout := &limitedBuffer{limit: limit}
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", &InvocationError{Op: "exec", Stderr: stderr.String(), Err: ctxErr}
	}
	if err != nil {
		ie := &InvocationError{Op: "exec", Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ie.ExitCode = exitErr.ExitCode()
		}
		return "", ie
	}
	if stdout.truncated {
		return "", &InvocationError{Op: "exec", Err: fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, limit)}
	}

	out := stdout.String()
	if !utf8.ValidString(out) {
		return "", &InvocationError{Op: "exec", Err: ErrInvalidUTF8}
	}
	return strings.TrimRight(out, "\r\n"), nil
}

// limitedBuffer keeps the first limit bytes written to it and swallows the
// rest so the child never blocks on a full pipe.
type limitedBuffer struct {
	buf       []byte
	limit     int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(len(b.buf))
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
