package spec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PassPath returns the file passing tests of a FAIL file are moved to, or ""
// when path is not a FAIL file.
func PassPath(path string) string {
	base := filepath.Base(path)
	if !strings.Contains(base, "FAIL") {
		return ""
	}
	return filepath.Join(filepath.Dir(path), strings.ReplaceAll(base, "FAIL", "PASS"))
}

// MovePasses appends the given passing inline tests to the PASS sibling of a
// FAIL test file and removes them from the FAIL file. Only cases written in
// the inline markup form and defined in path are moved. It returns the number
// of moved cases.
func MovePasses(path string, passing []TestCase) (int, error) {
	passPath := PassPath(path)
	if passPath == "" {
		return 0, nil
	}

	var moved []string
	for _, tc := range passing {
		if tc.Inline != "" && filepath.Clean(tc.Source) == filepath.Clean(path) {
			moved = append(moved, tc.Inline)
		}
	}
	if len(moved) == 0 {
		return 0, nil
	}

	entries, err := yaml.Marshal(moved)
	if err != nil {
		return 0, fmt.Errorf("encode passing tests: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	var kept bytes.Buffer
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if !isMovedLine(line, moved) {
			kept.WriteString(line)
		}
	}

	f, err := os.OpenFile(passPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", passPath, err)
	}
	defer f.Close()
	if err := appendEntries(f, entries); err != nil {
		return 0, fmt.Errorf("append to %s: %w", passPath, err)
	}

	if err := os.WriteFile(path, kept.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(moved), nil
}

// isMovedLine reports whether a YAML list line holds one of the moved tests.
func isMovedLine(line string, moved []string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "- ") {
		return false
	}
	var value string
	if err := yaml.Unmarshal([]byte(strings.TrimPrefix(trimmed, "- ")), &value); err != nil {
		return false
	}
	for _, m := range moved {
		if value == m {
			return true
		}
	}
	return false
}

// appendEntries writes a marshalled YAML sequence indented as items of the
// Tests list.
func appendEntries(f *os.File, entries []byte) error {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(string(entries), "\n"), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := f.WriteString(b.String())
	return err
}
