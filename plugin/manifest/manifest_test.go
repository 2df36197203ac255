package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/manifest"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(content), 0o644))
	return dir
}

func Test_Load(t *testing.T) {
	t.Run("complete manifest", func(t *testing.T) {
		dir := writeManifest(t, "name: widget\nversion: 1.2.3\ndescription: formats things\n")

		m, err := manifest.Load(dir)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "widget", m.Name)
		assert.Equal(t, "1.2.3", m.Version)
		assert.Equal(t, "formats things", m.Description)
	})

	t.Run("missing manifest is not an error", func(t *testing.T) {
		m, err := manifest.Load(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("empty fields allowed", func(t *testing.T) {
		dir := writeManifest(t, "description: no name or version\n")

		m, err := manifest.Load(dir)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Empty(t, m.Name)
		assert.Empty(t, m.Version)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := writeManifest(t, "{name: [broken")

		_, err := manifest.Load(dir)
		assert.ErrorIs(t, err, entities.ErrInvalidManifest)
	})

	t.Run("invalid version", func(t *testing.T) {
		dir := writeManifest(t, "name: widget\nversion: not-semver\n")

		_, err := manifest.Load(dir)
		assert.ErrorIs(t, err, entities.ErrInvalidManifest)
	})

	t.Run("invalid name", func(t *testing.T) {
		dir := writeManifest(t, "name: not/a/name\nversion: 1.0.0\n")

		_, err := manifest.Load(dir)
		assert.ErrorIs(t, err, entities.ErrInvalidManifest)
	})
}
