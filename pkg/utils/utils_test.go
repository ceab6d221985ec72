package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/utils"
)

type sample struct {
	Engine string `toml:"databaseEngine"`
	Count  int    `toml:"count"`
}

func TestTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info")

	require.NoError(t, utils.WriteTOMLToFile(path, &sample{Engine: "pebble", Count: 3}, 0600, "# auto-generated"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "# auto-generated\n")

	var loaded sample
	require.NoError(t, utils.ReadTOMLFromFile(path, &loaded))
	require.Equal(t, sample{Engine: "pebble", Count: 3}, loaded)

	require.Error(t, utils.ReadTOMLFromFile(filepath.Join(t.TempDir(), "missing"), &loaded))
}

func TestDirectoryHelpers(t *testing.T) {
	dir := t.TempDir()

	exists, err := utils.PathExists(dir)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = utils.PathExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, exists)

	empty, err := utils.DirectoryEmpty(dir)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 28), 0600))

	empty, err = utils.DirectoryEmpty(dir)
	require.NoError(t, err)
	require.False(t, empty)

	size, err := utils.FolderSize(dir)
	require.NoError(t, err)
	require.Equal(t, int64(128), size)
}

func TestWrappedLoggerWithoutLogger(t *testing.T) {
	l := utils.NewWrappedLogger(nil)
	require.Nil(t, l.Logger())
	require.Nil(t, l.LoggerNamed("sub"))
	l.LogInfof("dropped %d", 1)
	require.Panics(t, func() { l.LogPanicf("boom") })
}
