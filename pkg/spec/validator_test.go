package spec

import (
	"strings"
	"testing"

	"github.com/cgast/gramtest/pkg/markup"
)

func validSuite() Suite {
	return Suite{
		Name:   "cases",
		Path:   "cases.yaml",
		Config: SuiteConfig{Timeout: "10s", Normalize: []string{"whitespace", "NFC"}},
		Tests: []TestCase{
			{
				ID:     "cases#0001",
				Text:   "Mun leat dás.",
				Source: "cases.yaml",
				Line:   3,
				Expected: []markup.Annotation{
					{Code: "msyn-agr", Span: markup.Span{Start: 4, End: 8}},
					{Code: "typo", Span: markup.Span{Start: 4, End: 8}},
				},
			},
			{ID: "cases#0002", Text: "Dát lea.", Source: "cases.yaml", Line: 4},
		},
	}
}

func TestValidateSuiteValid(t *testing.T) {
	result := ValidateSuite(validSuite())
	if !result.Valid() {
		t.Errorf("expected valid, got errors: %s", result.Error())
	}
	if result.Error() != "" {
		t.Errorf("Error() on valid result = %q", result.Error())
	}
}

func TestValidateSuiteDuplicateExpectation(t *testing.T) {
	s := validSuite()
	s.Tests[0].Expected = append(s.Tests[0].Expected, markup.Annotation{
		Code: "typo", Span: markup.Span{Start: 4, End: 8}, Suggestions: []string{"leat"},
	})
	result := ValidateSuite(s)
	if result.Valid() {
		t.Fatal("expected duplicate (code, span) to be rejected")
	}
	assertHasFieldError(t, result, "cases.yaml:3: cases#0001")
}

func TestValidateSuiteSpanOutsideText(t *testing.T) {
	s := validSuite()
	s.Tests[1].Expected = []markup.Annotation{{Code: "x", Span: markup.Span{Start: 2, End: 42}}}
	result := ValidateSuite(s)
	if result.Valid() {
		t.Fatal("expected span error")
	}
	if !strings.Contains(result.Error(), "outside text") {
		t.Errorf("error = %s", result.Error())
	}
}

func TestValidateSuiteDuplicateID(t *testing.T) {
	s := validSuite()
	s.Tests[1].ID = s.Tests[0].ID
	result := ValidateSuite(s)
	if result.Valid() {
		t.Fatal("expected duplicate id error")
	}
	if !strings.Contains(result.Error(), "first defined at cases.yaml:3") {
		t.Errorf("error = %s", result.Error())
	}
}

func TestValidateSuiteConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   SuiteConfig
		field string
	}{
		{"bad timeout", SuiteConfig{Timeout: "soon"}, "Config.Timeout"},
		{"negative timeout", SuiteConfig{Timeout: "-1s"}, "Config.Timeout"},
		{"bad normalization", SuiteConfig{Normalize: []string{"whitespace", "lowercase"}}, "Config.Normalize[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSuite()
			s.Config = tt.cfg
			assertHasFieldError(t, ValidateSuite(s), tt.field)
		})
	}
}

func TestValidateSuiteNormalizeNames(t *testing.T) {
	for _, names := range [][]string{{"none"}, {" NFC "}, {"whitespace", "nfc"}} {
		s := validSuite()
		s.Config.Normalize = names
		if result := ValidateSuite(s); !result.Valid() {
			t.Errorf("Normalize %q: unexpected errors: %s", names, result.Error())
		}
	}
}

func assertHasFieldError(t *testing.T, result ValidationResult, field string) {
	t.Helper()
	for _, e := range result.Errors {
		if e.Field == field {
			return
		}
	}
	t.Errorf("expected error for field %q, got errors: %v", field, result.Errors)
}
