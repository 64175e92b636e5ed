package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.json5")
	require.NoError(t, os.WriteFile(
		path, []byte(`{name: "base", port: 8080}`), 0600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "service.local.json5"), []byte(`{port: 9090}`), 0600))

	out, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "base", Port: 9090}, out)
}

func TestReadConfigLocalFileOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "service.local.json5"), []byte(`{name: "local"}`), 0600))

	out, err := ReadConfig[testConfig](filepath.Join(dir, "service.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", out.Name)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "absent.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigInvalidSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{name:`), 0600))

	_, err := ReadConfig[testConfig](path)
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "config.local.json5", localPath("config.json5"))
	require.Equal(t, filepath.Join("a", "b.local.json5"), localPath(filepath.Join("a", "b.json5")))
}
