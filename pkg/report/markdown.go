package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/cgast/gramtest/pkg/runner"
)

// markdown renders failures as a GitHub-flavoured issue body.
type markdownRenderer struct{}

func (markdownRenderer) Name() string        { return "markdown" }
func (markdownRenderer) Description() string { return "markdown failure report, used for issues" }

func (markdownRenderer) Render(w io.Writer, rep Report, opts Options) error {
	ew := &errWriter{w: w}
	s := rep.Summary

	ew.printf("## %s\n\n", rep.Suite)
	if rep.Checker != "" {
		ew.printf("Checker: `%s`\n\n", rep.Checker)
	}
	ew.printf("| total | passed | failed | errored | precision | recall | F1 |\n")
	ew.printf("|---:|---:|---:|---:|---:|---:|---:|\n")
	c := s.Classes
	ew.printf("| %d | %d | %d | %d | %.1f%% | %.1f%% | %.1f%% |\n\n",
		s.Total, s.Passed, s.Failed, s.Errored, 100*c.Precision(), 100*c.Recall(), 100*c.F1())

	if d := rep.Delta; d != nil && len(d.NewlyFailing) > 0 {
		ew.printf("**Newly failing:** %s\n\n", codeList(d.NewlyFailing))
	}

	radius := opts.Window
	if radius <= 0 {
		radius = DefaultWindow
	}
	failures := rep.Failures()
	if len(failures) == 0 {
		ew.printf("All cases pass.\n")
		return ew.err
	}

	ew.printf("### Failures\n\n")
	for _, res := range failures {
		ew.printf("<details><summary><code>%s</code> %s</summary>\n\n", res.Case.ID, string(res.Verdict))
		ew.printf("```\n%s\n", res.Case.Text)
		if res.Verdict == runner.VerdictError {
			ew.printf("%s\n```\n\n</details>\n\n", res.ErrText)
			continue
		}
		for _, e := range Entries(res.Match) {
			excerpt, marker := Window(textFor(res, e), e.Annotation.Span, radius)
			ew.printf("\n%s %s\n  %s\n  %s\n", e.Label, DescribeEntry(e), excerpt, marker)
		}
		ew.printf("```\n\n</details>\n\n")
	}
	return ew.err
}

func codeList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ", ")
}

// IssueTitle is the title used when a failing run is published.
func IssueTitle(rep Report) string {
	return fmt.Sprintf("%s: %d of %d cases failing", rep.Suite, rep.Summary.Failed+rep.Summary.Errored, rep.Summary.Total)
}
