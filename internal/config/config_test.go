package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://aip.baidubce.com", cfg.OCR.ServiceURL)
	assert.Equal(t, 3, cfg.OCR.MaxFailures)
	assert.Equal(t, 2.0, cfg.OCR.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.OCR.RequestTimeout.Std())
	assert.Equal(t, 150, cfg.Render.DPI)
	assert.Equal(t, 95, cfg.Render.Quality)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api_key: k1
secret_key: s1
input_folder: /data/in
debug: true
ocr:
  rate_limit: 5
  request_timeout: 45s
  endpoints: [accurate, general]
render:
  dpi: 200
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/in", cfg.InputFolder)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5.0, cfg.OCR.RateLimit)
	assert.Equal(t, 45*time.Second, cfg.OCR.RequestTimeout.Std())
	assert.Equal(t, []string{"accurate", "general"}, cfg.OCR.Endpoints)
	assert.Equal(t, 200, cfg.Render.DPI)
	// untouched values keep their defaults
	assert.Equal(t, 3, cfg.OCR.MaxFailures)
}

func TestTopLevelCredentialKeys(t *testing.T) {
	path := writeConfig(t, "api_key: k1\nsecret_key: s1\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k1", cfg.APIKey)
	assert.Equal(t, "s1", cfg.SecretKey)
}

func TestFlagsWinOverFile(t *testing.T) {
	path := writeConfig(t, "api_key: from-file\ninput_folder: /file/in\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Apply(Overrides{APIKey: "from-flag", Debug: true})
	assert.Equal(t, "from-flag", cfg.APIKey)
	assert.Equal(t, "/file/in", cfg.InputFolder, "unset flags leave file values alone")
	assert.True(t, cfg.Debug)
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := Default()
	cfg.InputFolder = t.TempDir()
	err := cfg.Validate()
	assert.ErrorContains(t, err, "api key")
}

func TestValidateRequiresExistingInput(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "k"
	cfg.SecretKey = "s"
	cfg.InputFolder = filepath.Join(t.TempDir(), "missing")
	err := cfg.Validate()
	assert.ErrorContains(t, err, "input folder")
}

func TestValidateDerivesOutputFolder(t *testing.T) {
	base := t.TempDir()
	in := filepath.Join(base, "scans")
	require.NoError(t, os.MkdirAll(in, 0o755))

	cfg := Default()
	cfg.APIKey = "k"
	cfg.SecretKey = "s"
	cfg.InputFolder = in
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(base, "output"), cfg.OutputFolder)
	fi, err := os.Stat(cfg.OutputFolder)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestDebugLowersLogLevel(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "k"
	cfg.SecretKey = "s"
	cfg.InputFolder = t.TempDir()
	cfg.Debug = true
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestInvalidDurationRejected(t *testing.T) {
	path := writeConfig(t, "ocr:\n  request_timeout: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}
