package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port   int `json:"port"`
	Portal struct {
		TimeoutSeconds int    `json:"timeout_seconds"`
		OverridesFile  string `json:"overrides_file"`
	} `json:"portal"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are allowed
		port: 8000,
		portal: { timeout_seconds: 20, overrides_file: "overrides.yaml" },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		portal: { timeout_seconds: 5 },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, 5, cfg.Portal.TimeoutSeconds)
	require.Equal(t, "overrides.yaml", cfg.Portal.OverridesFile)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "dir/config.local.json5", localPath("dir/config.json5"))
	require.Equal(t, "telemetry.local.json5", localPath("telemetry.json5"))
}
