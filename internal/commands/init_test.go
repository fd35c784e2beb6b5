package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquida-dev/liquida/internal/config"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "liquida-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "liquida")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/liquida")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runLiquida(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runLiquida(t, "init", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized liquida at")

	for _, d := range []string{"inbox", filepath.Join("inbox", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runLiquida(t, "init", dir, "--dsn", "postgres://db:5432/acme", "--timezone", "America/Manaus")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db:5432/acme", cfg.Database.DSN)
	assert.Equal(t, "America/Manaus", cfg.Locale.Timezone)
	assert.Equal(t, 100, cfg.Import.BatchSize)
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runLiquida(t, "init", dir)
	require.NoError(t, err)

	out, err := runLiquida(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")
}

func TestInit_BadTimezone(t *testing.T) {
	dir := t.TempDir()
	_, err := runLiquida(t, "init", dir, "--timezone", "Nowhere/Special")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, config.FileName))
	assert.True(t, os.IsNotExist(err), "no config is written on failure")
}

func TestVersion(t *testing.T) {
	out, err := runLiquida(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "liquida version dev")
}

func TestImport_DryRunNeedsNoDatabase(t *testing.T) {
	out, err := runLiquida(t, "import", "--dry-run",
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		filepath.Join("..", "importer", "testdata", "acquirer_sample.csv"))
	require.NoError(t, err, out)

	assert.Contains(t, out, "acquirer_sample.csv: 4 rows, 3 records, 1 rejected")
	assert.Contains(t, out, "line 6:")
}

func TestImport_RequiresFiles(t *testing.T) {
	out, err := runLiquida(t, "import")
	require.Error(t, err)
	assert.Contains(t, out, "requires at least one file")
}
