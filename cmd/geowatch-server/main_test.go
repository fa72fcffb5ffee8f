package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedFile = `
zones:
  - name: Office
    kind: office
    lat: "-2.1894"
    lon: "-79.8890"
    radius_m: 100
    assignments:
      - employee: E1
        primary: true
`

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) string {
	t.Helper()
	// Flag variables survive between Execute calls.
	dryRun, configPath, verbose = false, "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func tempEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GEOWATCH_CONFIG", "")
	t.Setenv("GEOWATCH_ENV", "prod")
	t.Setenv("GEOWATCH_DB_PATH", filepath.Join(dir, "geowatch.db"))
	return dir
}

func TestVersion(t *testing.T) {
	assert.Equal(t, version+"\n", run(t, "version"))
}

func TestMigrate_DryRunThenApply(t *testing.T) {
	tempEnv(t)

	pending := run(t, "migrate", "--dry-run")
	assert.Contains(t, pending, "0001_zones_samples.sql")

	run(t, "migrate")
	assert.Empty(t, run(t, "migrate", "--dry-run"))
}

func TestSeed_Idempotent(t *testing.T) {
	dir := tempEnv(t)
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFile), 0o600))

	first := run(t, "seed", path)
	assert.Equal(t, "zones: 1 created, 0 updated; assignments: 1 created, 0 updated", strings.TrimSpace(first))

	second := run(t, "seed", path)
	assert.Equal(t, "zones: 0 created, 1 updated; assignments: 0 created, 1 updated", strings.TrimSpace(second))
}
