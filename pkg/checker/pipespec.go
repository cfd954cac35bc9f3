package checker

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCommand is the checker executable used with a pipeline spec.
const DefaultCommand = "divvun-checker"

const pipespecName = "pipespec.xml"

// PipeSpec lists the pipelines (variants) a checker spec offers.
type PipeSpec struct {
	Default   string
	Pipelines []string
}

// Has reports whether the spec defines the named pipeline.
func (p PipeSpec) Has(name string) bool {
	for _, n := range p.Pipelines {
		if n == name {
			return true
		}
	}
	return false
}

type xmlPipeSpec struct {
	XMLName     xml.Name `xml:"pipespec"`
	DefaultPipe string   `xml:"default-pipe,attr"`
	Pipelines   []struct {
		Name string `xml:"name,attr"`
	} `xml:"pipeline"`
}

// ReadPipeSpec reads a pipeline spec from a pipespec.xml file or from a
// zip archive (.zcheck, .zhfst) that contains one.
func ReadPipeSpec(path string) (PipeSpec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zcheck", ".zhfst":
		zr, err := zip.OpenReader(path)
		if err != nil {
			return PipeSpec{}, fmt.Errorf("open archive %s: %w", path, err)
		}
		defer zr.Close()
		for _, f := range zr.File {
			if filepath.Base(f.Name) != pipespecName {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return PipeSpec{}, fmt.Errorf("open %s in %s: %w", f.Name, path, err)
			}
			defer rc.Close()
			return decodePipeSpec(rc, path)
		}
		return PipeSpec{}, fmt.Errorf("archive %s has no %s", path, pipespecName)
	default:
		f, err := os.Open(path)
		if err != nil {
			return PipeSpec{}, fmt.Errorf("open pipeline spec: %w", err)
		}
		defer f.Close()
		return decodePipeSpec(f, path)
	}
}

func decodePipeSpec(r io.Reader, path string) (PipeSpec, error) {
	var raw xmlPipeSpec
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return PipeSpec{}, fmt.Errorf("parse pipeline spec %s: %w", path, err)
	}
	var ps PipeSpec
	for _, p := range raw.Pipelines {
		if p.Name != "" {
			ps.Pipelines = append(ps.Pipelines, p.Name)
		}
	}
	if len(ps.Pipelines) == 0 {
		return PipeSpec{}, fmt.Errorf("pipeline spec %s defines no pipelines", path)
	}
	ps.Default = raw.DefaultPipe
	if ps.Default == "" {
		ps.Default = ps.Pipelines[0]
	}
	return ps, nil
}

// SelectVariant picks the first wanted variant the spec offers, or the
// spec's default pipeline when none is wanted. Speller archives name their
// pipelines without the "-dev" suffix.
func SelectVariant(ps PipeSpec, wanted []string, specPath string) (string, error) {
	if len(wanted) == 0 {
		return ps.Default, nil
	}
	zhfst := strings.EqualFold(filepath.Ext(specPath), ".zhfst")
	for _, v := range wanted {
		if zhfst {
			v = strings.ReplaceAll(v, "-dev", "")
		}
		if ps.Has(v) {
			return v, nil
		}
	}
	return "", &VariantError{Spec: specPath, Wanted: wanted, Available: ps.Pipelines}
}

// VariantError reports that none of the configured variants exists.
type VariantError struct {
	Spec      string
	Wanted    []string
	Available []string
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("no pipeline named %s in %s (available: %s)",
		strings.Join(e.Wanted, ", "), e.Spec, strings.Join(e.Available, ", "))
}

// SpecArgv builds the checker command line for a pipeline spec: archives
// are passed with --archive, plain specs with --spec.
func SpecArgv(command, specPath, variant string) []string {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = []string{DefaultCommand}
	}
	if strings.EqualFold(filepath.Ext(specPath), ".zcheck") {
		argv = append(argv, "--archive", specPath)
	} else {
		argv = append(argv, "--spec", specPath)
	}
	if variant != "" {
		argv = append(argv, "--variant", variant)
	}
	return argv
}

// Setup describes how to reach the checker for a suite.
type Setup struct {
	Command   string   // executable and leading arguments
	Endpoint  string   // HTTP endpoint, takes precedence over Command
	Spec      string   // pipeline spec or archive path
	Variants  []string // preferred variants
	Normalize []string
	MaxOutput int64
}

// ErrNoChecker is returned by New when Setup names no checker.
var ErrNoChecker = errors.New("no checker configured: set Spec, Command or Endpoint")

// New creates the Checker described by s.
func New(s Setup) (Checker, error) {
	norm, err := ParseNormalization(s.Normalize)
	if err != nil {
		return nil, err
	}

	switch {
	case s.Endpoint != "":
		h, err := NewHTTP(s.Endpoint, norm)
		if err != nil {
			return nil, err
		}
		h.MaxOutput = s.MaxOutput
		return h, nil

	case s.Spec != "":
		ps, err := ReadPipeSpec(s.Spec)
		if err != nil {
			return nil, err
		}
		variant, err := SelectVariant(ps, s.Variants, s.Spec)
		if err != nil {
			return nil, err
		}
		c, err := NewCommand(SpecArgv(s.Command, s.Spec, variant), norm)
		if err != nil {
			return nil, err
		}
		c.MaxOutput = s.MaxOutput
		return c, nil

	case strings.TrimSpace(s.Command) != "":
		c, err := NewCommand(strings.Fields(s.Command), norm)
		if err != nil {
			return nil, err
		}
		c.MaxOutput = s.MaxOutput
		return c, nil
	}
	return nil, ErrNoChecker
}
