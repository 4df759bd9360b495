package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeworks/srcmodel/internal/cli"
)

func TestRunHelp(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"--help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunUsageError(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"convert"})
	require.Error(t, err)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRunBadModel(t *testing.T) {
	// A syntax error must surface as a located parse error, not a usage
	// error.
	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte("source_model {\n"), 0o600))

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"convert", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.hcl")

	var exitErr *cli.ExitError
	assert.False(t, errors.As(err, &exitErr))
}
