package checker

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipespecXML = `<?xml version="1.0" encoding="UTF-8"?>
<pipespec language="se" default-pipe="smegram">
  <pipeline name="smegram-dev" language="se"/>
  <pipeline name="smegram" language="se"/>
  <pipeline name="smespell" language="se"/>
</pipespec>
`

func writePipeSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipespec.xml")
	require.NoError(t, os.WriteFile(path, []byte(pipespecXML), 0644))
	return path
}

func writeArchive(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("pipespec.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(pipespecXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReadPipeSpec(t *testing.T) {
	for _, path := range []string{writePipeSpec(t), writeArchive(t, "se.zcheck")} {
		ps, err := ReadPipeSpec(path)
		require.NoError(t, err, path)
		assert.Equal(t, "smegram", ps.Default)
		assert.Equal(t, []string{"smegram-dev", "smegram", "smespell"}, ps.Pipelines)
	}
}

func TestReadPipeSpecErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.xml")
	require.NoError(t, os.WriteFile(empty, []byte(`<pipespec/>`), 0644))

	_, err := ReadPipeSpec(empty)
	assert.Error(t, err)
	_, err = ReadPipeSpec(filepath.Join(dir, "missing.xml"))
	assert.Error(t, err)
}

func TestSelectVariant(t *testing.T) {
	ps := PipeSpec{Default: "smegram", Pipelines: []string{"smegram-dev", "smegram", "smespell"}}

	v, err := SelectVariant(ps, nil, "pipespec.xml")
	require.NoError(t, err)
	assert.Equal(t, "smegram", v)

	v, err = SelectVariant(ps, []string{"nope", "smegram-dev"}, "pipespec.xml")
	require.NoError(t, err)
	assert.Equal(t, "smegram-dev", v)

	v, err = SelectVariant(ps, []string{"smespell-dev"}, "se.zhfst")
	require.NoError(t, err)
	assert.Equal(t, "smespell", v)

	_, err = SelectVariant(ps, []string{"nope"}, "pipespec.xml")
	var ve *VariantError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ps.Pipelines, ve.Available)
}

func TestSpecArgv(t *testing.T) {
	assert.Equal(t,
		[]string{"divvun-checker", "--archive", "se.zcheck", "--variant", "smegram"},
		SpecArgv("", "se.zcheck", "smegram"))
	assert.Equal(t,
		[]string{"my-checker", "-q", "--spec", "pipespec.xml"},
		SpecArgv("my-checker -q", "pipespec.xml", ""))
}

func TestNew(t *testing.T) {
	spec := writePipeSpec(t)

	c, err := New(Setup{Spec: spec, Variants: []string{"smegram-dev"}, Normalize: []string{"whitespace"}})
	require.NoError(t, err)
	cmd, ok := c.(*Command)
	require.True(t, ok)
	assert.Equal(t, []string{"divvun-checker", "--spec", spec, "--variant", "smegram-dev"}, cmd.Argv())
	assert.True(t, cmd.Normalization().Whitespace)

	c, err = New(Setup{Endpoint: "http://localhost:8080/check", Spec: spec})
	require.NoError(t, err)
	_, ok = c.(*HTTP)
	assert.True(t, ok)

	c, err = New(Setup{Command: "cat -u"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "-u"}, c.(*Command).Argv())

	_, err = New(Setup{})
	assert.ErrorIs(t, err, ErrNoChecker)

	_, err = New(Setup{Command: "cat", Normalize: []string{"bogus"}})
	assert.Error(t, err)
}
