package spec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cgast/gramtest/pkg/markup"
)

// LoadOptions controls how test files are combined into a suite.
type LoadOptions struct {
	// Total also loads the known-failure companion of the first file, see
	// NotFixedPath.
	Total bool
}

type rawFile struct {
	Config SuiteConfig  `yaml:"Config"`
	Tests  *[]yaml.Node `yaml:"Tests"`
}

type rawCase struct {
	ID     string     `yaml:"id"`
	Text   *string    `yaml:"text"`
	Markup string     `yaml:"markup"`
	Errors []rawError `yaml:"errors"`
}

type rawError struct {
	Code        string   `yaml:"code"`
	Start       *int     `yaml:"start"`
	End         *int     `yaml:"end"`
	Suggestions []string `yaml:"suggestions"`
	Message     string   `yaml:"message"`
}

// LoadFile reads a YAML test file and returns the parsed, validated suite.
func LoadFile(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read test file %s: %w", path, err)
	}
	return ParseSuite(data, path)
}

// LoadSuites loads several test files into one suite. The Config section of
// the first file applies to the whole run.
func LoadSuites(paths []string, opts LoadOptions) (Suite, error) {
	if len(paths) == 0 {
		return Suite{}, errors.New("no test files given")
	}

	files := append([]string(nil), paths...)
	if opts.Total {
		companion := NotFixedPath(paths[0])
		if _, err := os.Stat(companion); err == nil && !containsPath(files, companion) {
			files = append(files, companion)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Suite{}, fmt.Errorf("stat %s: %w", companion, err)
		}
	}

	var merged Suite
	for i, p := range files {
		s, err := LoadFile(p)
		if err != nil {
			return Suite{}, err
		}
		if i == 0 {
			merged = s
			continue
		}
		merged.Tests = append(merged.Tests, s.Tests...)
	}

	if res := ValidateSuite(merged); !res.Valid() {
		return Suite{}, res
	}
	return merged, nil
}

// ParseSuite parses YAML test file data. path is used for default case IDs
// and error locations.
func ParseSuite(data []byte, path string) (Suite, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Suite{}, fmt.Errorf("parse test file %s: %w", path, err)
	}

	var result ValidationResult
	if raw.Tests == nil {
		result.Errors = append(result.Errors, ValidationError{Field: path + ": Tests", Message: "required"})
		return Suite{}, result
	}

	suite := Suite{
		Name:   Stem(path),
		Path:   path,
		Config: raw.Config,
	}
	for i, node := range *raw.Tests {
		tc, errs := decodeCase(node, path, i)
		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		suite.Tests = append(suite.Tests, tc)
	}
	if !result.Valid() {
		return Suite{}, result
	}

	if res := ValidateSuite(suite); !res.Valid() {
		return Suite{}, res
	}
	return suite, nil
}

// NotFixedPath returns the companion file holding known failures for a test
// file: x.yaml pairs with x.notfixed.yaml.
func NotFixedPath(path string) string {
	return filepath.Join(filepath.Dir(path), Stem(path)+".notfixed.yaml")
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DefaultID is the identifier of the index-th (zero-based) case of a file
// when the case does not name itself.
func DefaultID(path string, index int) string {
	return fmt.Sprintf("%s#%04d", Stem(path), index+1)
}

func decodeCase(node yaml.Node, path string, index int) (TestCase, []ValidationError) {
	field := fmt.Sprintf("%s:%d: Tests[%d]", path, node.Line, index)
	fail := func(suffix, msg string) (TestCase, []ValidationError) {
		return TestCase{}, []ValidationError{{Field: field + suffix, Message: msg}}
	}

	tc := TestCase{
		ID:     DefaultID(path, index),
		Source: path,
		Line:   node.Line,
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return fail("", "empty test case")
		}
		doc, err := markup.Parse(node.Value)
		if err != nil {
			return fail("", err.Error())
		}
		tc.Text = doc.Text
		tc.Expected = doc.Annotations
		tc.Inline = node.Value
		return tc, nil

	case yaml.MappingNode:
		var rc rawCase
		if err := node.Decode(&rc); err != nil {
			return fail("", err.Error())
		}
		if rc.ID != "" {
			tc.ID = rc.ID
		}
		switch {
		case rc.Text != nil && rc.Markup != "":
			return fail("", "text and markup are mutually exclusive")
		case rc.Markup != "":
			if len(rc.Errors) > 0 {
				return fail(".errors", "errors cannot be combined with markup")
			}
			doc, err := markup.Parse(rc.Markup)
			if err != nil {
				return fail(".markup", err.Error())
			}
			tc.Text = doc.Text
			tc.Expected = doc.Annotations
			return tc, nil
		case rc.Text == nil:
			return fail(".text", "required")
		}

		tc.Text = *rc.Text
		var errs []ValidationError
		for j, re := range rc.Errors {
			ef := fmt.Sprintf("%s.errors[%d]", field, j)
			if strings.TrimSpace(re.Code) == "" {
				errs = append(errs, ValidationError{Field: ef + ".code", Message: "required"})
			}
			if re.Start == nil {
				errs = append(errs, ValidationError{Field: ef + ".start", Message: "required"})
			}
			if re.End == nil {
				errs = append(errs, ValidationError{Field: ef + ".end", Message: "required"})
			}
			if re.Start == nil || re.End == nil {
				continue
			}
			span := markup.Span{Start: *re.Start, End: *re.End}
			tc.Expected = append(tc.Expected, markup.Annotation{
				Code:        strings.TrimSpace(re.Code),
				Span:        span,
				Surface:     markup.Slice(tc.Text, span),
				Suggestions: re.Suggestions,
				Message:     re.Message,
			})
		}
		if len(errs) > 0 {
			return TestCase{}, errs
		}
		sort.SliceStable(tc.Expected, func(a, b int) bool {
			sa, sb := tc.Expected[a].Span, tc.Expected[b].Span
			if sa.Start != sb.Start {
				return sa.Start < sb.Start
			}
			return sa.End < sb.End
		})
		return tc, nil
	}

	return fail("", "expected a markup string or a mapping")
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if filepath.Clean(q) == filepath.Clean(p) {
			return true
		}
	}
	return false
}
