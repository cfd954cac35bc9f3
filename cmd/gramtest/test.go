package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/gramtest/internal/config"
	"github.com/cgast/gramtest/internal/publish"
	"github.com/cgast/gramtest/internal/ui"
	"github.com/cgast/gramtest/pkg/checker"
	"github.com/cgast/gramtest/pkg/events"
	"github.com/cgast/gramtest/pkg/history"
	"github.com/cgast/gramtest/pkg/report"
	"github.com/cgast/gramtest/pkg/runner"
	"github.com/cgast/gramtest/pkg/spec"
)

type testFlags struct {
	style           string
	silent          bool
	hidePasses      bool
	specPath        string
	variants        []string
	total           bool
	command         string
	endpoint        string
	jobs            int
	timeout         time.Duration
	suggestions     string
	softSuggestions bool
	movePasses      bool
	history         bool
	noHistory       bool
	publishRepo     string
	progress        bool
	window          int
	failFast        bool
}

func newTestCmd(g *globalFlags) *cobra.Command {
	f := &testFlags{}
	cmd := &cobra.Command{
		Use:   "test <file.yaml>...",
		Short: "Run grammar test files against a checker",
		Long: `Run every case of the given YAML test files through the checker named in
the first file's Config section (or on the command line) and report the
differences between expected and reported errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			return runTests(cmd, e, g, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.style, "output", "o", "", "output style ("+strings.Join(report.DefaultRegistry().Names(), "|")+")")
	fl.BoolVarP(&f.silent, "silent", "q", false, "no output, exit code only")
	fl.BoolVarP(&f.hidePasses, "hide-passes", "p", false, "do not show passing cases")
	fl.StringVarP(&f.specPath, "spec", "s", "", "pipeline spec or archive, overrides Config.Spec")
	fl.StringSliceVarP(&f.variants, "variant", "V", nil, "pipeline variant, overrides Config.Variants")
	fl.BoolVarP(&f.total, "total", "t", false, "also run the known failures in <name>.notfixed.yaml")
	fl.StringVar(&f.command, "checker", "", "checker command line, overrides Config.Command")
	fl.StringVar(&f.endpoint, "endpoint", "", "HTTP checker endpoint, overrides Config.Endpoint")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "cases run in parallel (default: one per CPU)")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-case checker timeout")
	fl.StringVar(&f.suggestions, "suggestions", "superset", "suggestion policy (superset|exact|ignore)")
	fl.BoolVar(&f.softSuggestions, "soft-suggestions", false, "report suggestion mismatches as warnings")
	fl.BoolVar(&f.movePasses, "move-passes", false, "move passing tests from *FAIL* files to their PASS sibling")
	fl.BoolVar(&f.history, "history", false, "record the run in the history store")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not record the run")
	fl.StringVar(&f.publishRepo, "publish", "", "file a GitHub issue in owner/name when the run fails")
	fl.BoolVar(&f.progress, "progress", false, "show live progress on a terminal")
	fl.IntVar(&f.window, "window", 0, "characters of context shown around an error")
	fl.BoolVar(&f.failFast, "fail-fast", false, "stop after the first case that does not pass")
	cmd.MarkFlagsMutuallyExclusive("history", "no-history")
	return cmd
}

func runTests(cmd *cobra.Command, e *env, g *globalFlags, f *testFlags, paths []string) error {
	ctx := cmd.Context()
	cfg := e.cfg

	suite, err := spec.LoadSuites(paths, spec.LoadOptions{Total: f.total})
	if err != nil {
		return infraError(err)
	}
	e.log.Info("suite loaded", "suite", suite.Name, "cases", len(suite.Tests), "files", len(paths))

	chk, err := checker.New(checkerSetup(suite, cfg, f))
	if err != nil {
		return infraError(fmt.Errorf("checker: %w", err))
	}
	if n, err := cfg.MaxOutputBytes(); err == nil {
		e.log.Info("checker ready", "checker", chk, "max_output", config.FormatSize(n))
	}

	timeout, err := caseTimeout(cmd, suite, cfg, f)
	if err != nil {
		return infraError(err)
	}
	m, err := matcherFor(cmd, cfg, f.suggestions, f.softSuggestions)
	if err != nil {
		return infraError(err)
	}
	jobs := cfg.Runner.Jobs
	if cmd.Flags().Changed("jobs") {
		jobs = f.jobs
	}

	bus := events.NewMemoryBus(events.WithBuffer(256))
	bus.Publish(events.NewEvent(events.EventSuiteLoaded, suite.Name))
	r := runner.New(chk,
		runner.WithJobs(jobs),
		runner.WithTimeout(timeout),
		runner.WithMatcher(m),
		runner.WithLogger(e.log),
		runner.WithEvents(bus),
		runner.WithFailFast(f.failFast || cfg.Runner.FailFast),
	)

	stopUI := startProgress(ctx, cmd, bus, f.progress, suite.Name, len(suite.Tests))
	start := time.Now()
	collector := report.NewCollector()
	_, runErr := r.Run(ctx, suite.Tests, collector)
	stopUI()

	rep := report.Build(suite.Name, collector.Results())
	rep.Checker = fmt.Sprint(chk)
	rep.Started = start
	rep.Duration = time.Since(start)
	if runErr != nil {
		rep.Interrupted = true
		e.log.Warn("run interrupted", "err", runErr)
	}

	if historyEnabled(cfg, f) && !rep.Interrupted {
		if err := recordHistory(cfg, &rep, bus); err != nil {
			e.log.Warn("history not recorded", "err", err)
		}
	}

	if err := renderReport(cmd, e, g, f, rep); err != nil {
		return infraError(err)
	}

	if f.movePasses && !rep.Interrupted {
		if err := movePasses(cmd, paths, rep); err != nil {
			return infraError(err)
		}
	}

	if f.publishRepo != "" && rep.ExitCode() != report.ExitOK {
		if err := publishReport(ctx, cmd, g, f.publishRepo, rep, bus); err != nil {
			e.log.Error("report not published", "err", err)
		}
	}

	if code := rep.ExitCode(); code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// checkerSetup merges the suite's Config with command-line overrides. A
// spec from the test file is relative to the file; one from the command
// line is relative to the working directory.
func checkerSetup(suite spec.Suite, cfg config.Config, f *testFlags) checker.Setup {
	s := checker.Setup{
		Command:   suite.Config.Command,
		Endpoint:  suite.Config.Endpoint,
		Spec:      suite.Config.Spec,
		Variants:  suite.Config.Variants,
		Normalize: suite.Config.Normalize,
	}
	if s.Spec != "" && !filepath.IsAbs(s.Spec) {
		s.Spec = filepath.Join(suite.Dir(), s.Spec)
	}
	if f.specPath != "" {
		s.Spec = f.specPath
	}
	if len(f.variants) > 0 {
		s.Variants = f.variants
	}
	if f.command != "" {
		s.Command = f.command
		if f.specPath == "" {
			s.Spec = ""
		}
	}
	if f.endpoint != "" {
		s.Endpoint = f.endpoint
	}
	if n, err := cfg.MaxOutputBytes(); err == nil {
		s.MaxOutput = n
	}
	return s
}

func caseTimeout(cmd *cobra.Command, suite spec.Suite, cfg config.Config, f *testFlags) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") {
		return f.timeout, nil
	}
	if suite.Config.Timeout != "" {
		return time.ParseDuration(suite.Config.Timeout)
	}
	return cfg.TimeoutDuration()
}

func historyEnabled(cfg config.Config, f *testFlags) bool {
	switch {
	case f.noHistory:
		return false
	case f.history:
		return true
	}
	return cfg.History.Enabled
}

func recordHistory(cfg config.Config, rep *report.Report, bus events.EventBus) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	prev, ok, err := store.Last(rep.Suite)
	if err != nil {
		return err
	}
	if ok {
		rep.CompareWith(prev)
	}
	saved, err := store.Append(rep.Record())
	if err != nil {
		return err
	}
	if cfg.History.Keep > 0 {
		if _, err := store.Prune(rep.Suite, cfg.History.Keep); err != nil {
			return err
		}
	}
	bus.Publish(events.NewEvent(events.EventHistorySaved, saved.Seq))
	return nil
}

func renderReport(cmd *cobra.Command, e *env, g *globalFlags, f *testFlags, rep report.Report) error {
	style := e.cfg.Report.Style
	if f.style != "" {
		style = f.style
	}
	if f.silent {
		style = "silent"
	}
	rr, err := report.DefaultRegistry().Resolve(style)
	if err != nil {
		return err
	}
	window := e.cfg.Report.Window
	if f.window > 0 {
		window = f.window
	}
	return rr.Render(cmd.OutOrStdout(), rep, report.Options{
		Color:      e.color,
		HidePasses: f.hidePasses || e.cfg.Report.HidePasses,
		Window:     window,
		Verbose:    g.verbose,
	})
}

func movePasses(cmd *cobra.Command, paths []string, rep report.Report) error {
	var passing []spec.TestCase
	for _, res := range rep.Passing() {
		passing = append(passing, res.Case)
	}
	for _, p := range paths {
		if spec.PassPath(p) == "" {
			continue
		}
		n, err := spec.MovePasses(p, passing)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "moved %d passing tests from %s to %s\n", n, p, spec.PassPath(p))
		}
	}
	return nil
}

func publishReport(ctx context.Context, cmd *cobra.Command, g *globalFlags, repo string, rep report.Report, bus events.EventBus) error {
	platCfg, err := config.LoadPlatformConfig(platformConfigPath(g.configPath))
	if err != nil {
		return err
	}
	if repo == "default" {
		repo = platCfg.GitHub.DefaultRepo
	}
	if repo == "" {
		return errors.New("no repository given and github.default_repo is not set")
	}

	var opts []publish.Option
	if platCfg.GitHub.BaseURL != "" {
		opts = append(opts, publish.WithBaseURL(platCfg.GitHub.BaseURL))
	}
	p, err := publish.New(platCfg.GitHub.Token, opts...)
	if err != nil {
		return err
	}

	md, err := report.DefaultRegistry().Resolve("markdown")
	if err != nil {
		return err
	}
	var body bytes.Buffer
	if err := md.Render(&body, rep, report.Options{}); err != nil {
		return err
	}

	ref, err := p.Publish(ctx, repo, publish.Issue{
		Title:  report.IssueTitle(rep),
		Body:   body.String(),
		Labels: []string{"gramtest"},
	})
	if err != nil {
		return err
	}
	bus.Publish(events.NewEvent(events.EventReportPublish, ref.URL))
	fmt.Fprintf(cmd.ErrOrStderr(), "report published: %s\n", ref.URL)
	return nil
}

// startProgress runs the live progress UI when asked for on a terminal.
// The returned function stops it and waits for the final frame.
func startProgress(ctx context.Context, cmd *cobra.Command, bus *events.MemoryBus, enabled bool, title string, total int) func() {
	out := cmd.ErrOrStderr()
	if !enabled || !isTerminal(out) {
		return func() {}
	}
	ch := bus.Subscribe(events.EventCaseStart, events.EventCaseVerdict)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ui.Run(ctx, out, title, total, ch)
	}()
	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}
