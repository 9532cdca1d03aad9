package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, filepath.Join("/data", "Config.ini"), ResolvePath("/data"))

	t.Setenv(EnvPath, "/custom/location.ini")
	assert.Equal(t, "/custom/location.ini", ResolvePath("/data"), "env override wins over base dir")
}

func TestFile_Sections(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "Config.ini"))

	assert.Equal(t, Registry(), f.Sections(), "no file yet, pure defaults")

	require.NoError(t, os.WriteFile(f.Path, []byte("[TimeZone]\ntimezone = Europe/Madrid\n"), 0o600))
	sections := f.Sections()
	for _, s := range sections {
		if s.Name == "TimeZone" {
			assert.Equal(t, "Europe/Madrid", s.Options[0].Value)
		}
	}
	assert.Len(t, sections, len(Registry()), "served view always covers the full registry")
}

func TestFile_Writable(t *testing.T) {
	dir := t.TempDir()

	f := NewFile(filepath.Join(dir, "Config.ini"))
	assert.True(t, f.Writable(), "missing file in writable dir")

	require.NoError(t, os.WriteFile(f.Path, []byte("x"), 0o400))
	assert.False(t, f.Writable(), "read-only file")

	require.NoError(t, os.Chmod(f.Path, 0o600))
	assert.True(t, f.Writable())

	roDir := filepath.Join(dir, "ro")
	require.NoError(t, os.Mkdir(roDir, 0o500))
	defer os.Chmod(roDir, 0o700) //nolint:errcheck // restore for cleanup
	assert.False(t, NewFile(filepath.Join(roDir, "Config.ini")).Writable(), "missing file in read-only dir")
}

func TestFile_Save(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "Config.ini"))

	form := map[string]string{
		FieldName("Synology Photos", "SYNOLOGY_URL"): "http://nas:5000",
	}
	require.NoError(t, f.Save(form))

	content, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# Config.ini File\n"))
	assert.Contains(t, string(content), "SYNOLOGY_URL = http://nas:5000\n")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFile_SaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "Config.ini"))
	require.NoError(t, os.WriteFile(f.Path, []byte("original"), 0o400))

	err := f.Save(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not writable")

	require.NoError(t, os.Chmod(f.Path, 0o600))
	content, rerr := os.ReadFile(f.Path)
	require.NoError(t, rerr)
	assert.Equal(t, "original", string(content), "failed save leaves the file untouched")
}

func TestFile_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "Config.ini"))

	require.NoError(t, f.Save(map[string]string{FieldName("Apple Photos", "album"): "first"}))
	require.NoError(t, f.Save(map[string]string{FieldName("Apple Photos", "album"): "second"}))

	content, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "album = second\n")
	assert.NotContains(t, string(content), "first", "save is a whole-file replace")
}
