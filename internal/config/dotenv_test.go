// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvbboxes.env")
	require.NoError(t, os.WriteFile(path, []byte("DVBBOXES_DOTENV_PROBE=fromfile\nDVBBOXES_DOTENV_KEEP=fromfile\n"), 0o600))

	t.Setenv("DVBBOXES_DOTENV_KEEP", "fromenv")
	t.Cleanup(func() { _ = os.Unsetenv("DVBBOXES_DOTENV_PROBE") })

	require.NoError(t, LoadEnvFiles(path))
	assert.Equal(t, "fromfile", os.Getenv("DVBBOXES_DOTENV_PROBE"))
	assert.Equal(t, "fromenv", os.Getenv("DVBBOXES_DOTENV_KEEP"))
}

func TestLoadEnvFiles_NoneIsNoop(t *testing.T) {
	assert.NoError(t, LoadEnvFiles())
}

func TestLoadEnvFiles_MissingFile(t *testing.T) {
	err := LoadEnvFiles(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
