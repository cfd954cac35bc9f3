package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cgast/gramtest/pkg/report"
	"github.com/cgast/gramtest/pkg/spec"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "gramtest",
		Short: "Regression tests for grammar checker pipelines",
		Long: `gramtest runs marked-up sentences through a grammar checker and reports
which expected errors were found, missed or reported differently.

Exit codes: 0 all cases pass, 1 a case failed or drifted, 2 the checker
or the test files could not be used.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "runtime config file (default .gramtest/config.yaml)")
	pf.StringVar(&g.color, "color", "", "colorize output (auto|on|off)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug|info|warn|error|off)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "show checker output and per-code statistics")

	root.AddCommand(
		newTestCmd(g),
		newCompareCmd(g),
		newValidateCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// infraError marks err as a setup or checker problem.
func infraError(err error) error {
	return &exitError{code: report.ExitInfra, err: err}
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return report.ExitOK
	}

	code := report.ExitInfra
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			return code
		}
		err = ee.err
	}

	var vr spec.ValidationResult
	if errors.As(err, &vr) {
		fmt.Fprintln(stderr, "error: invalid test file")
		for _, e := range vr.Errors {
			fmt.Fprintf(stderr, "  %s\n", e.Error())
		}
		return code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return code
}
