package spec

import (
	"path/filepath"

	"github.com/cgast/gramtest/pkg/markup"
)

// Suite is a set of grammar-checker test cases together with the checker
// configuration they were written for.
type Suite struct {
	Name   string
	Path   string // first file the suite was loaded from
	Config SuiteConfig
	Tests  []TestCase
}

// Dir returns the directory relative paths in Config are resolved against.
func (s Suite) Dir() string {
	return filepath.Dir(s.Path)
}

// SuiteConfig is the Config section of a test file. Field names follow the
// capitalised keys used by existing grammar test files.
type SuiteConfig struct {
	Spec      string   `yaml:"Spec" json:"spec,omitempty"`           // pipeline spec or archive, relative to the test file
	Variants  []string `yaml:"Variants" json:"variants,omitempty"`   // preferred pipeline variants, first available wins
	Command   string   `yaml:"Command" json:"command,omitempty"`     // checker executable, defaults to divvun-checker
	Endpoint  string   `yaml:"Endpoint" json:"endpoint,omitempty"`   // HTTP checker endpoint, overrides Command
	Normalize []string `yaml:"Normalize" json:"normalize,omitempty"` // "whitespace", "nfc"
	Timeout   string   `yaml:"Timeout" json:"timeout,omitempty"`     // per-case timeout, e.g. "10s"
}

// TestCase is a sentence together with the errors a linguist expects the
// checker to flag in it.
type TestCase struct {
	ID       string              `json:"id"`
	Text     string              `json:"text"`
	Expected []markup.Annotation `json:"expected"`

	Source string `json:"source,omitempty"` // file the case was read from
	Line   int    `json:"line,omitempty"`   // YAML line of the case
	Inline string `json:"inline,omitempty"` // original markup for inline cases
}
