package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Equal(t, time.Minute, cfg.ImportTimeout())
	assert.Equal(t, 100, cfg.Storage.HistoryLimit)
}

func TestLoadConfigWithInfo_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[server]
port = 9000

[storage]
driver = "sqlite"

[import]
max_upload_mb = 5
sheet = "考评明细"
`)

	cfg, info, err := LoadConfigWithInfo(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.True(t, info.PortSpecified)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Import.MaxUploadMB)
	assert.Equal(t, "考评明细", cfg.Import.Sheet)
	// 未出现的键保持默认值
	assert.Equal(t, 60, cfg.Import.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigWithInfo_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[storage]\ndriver = \"json\"\n[log]\nlevel = \"debug\"\n")

	t.Setenv("PERFREVIEW_STORAGE_DRIVER", "SQLITE")
	t.Setenv("PERFREVIEW_PORT", "8088")
	t.Setenv("PERFREVIEW_HISTORY_LIMIT", "not-a-number")

	cfg, info, err := LoadConfigWithInfo(path)
	require.NoError(t, err)
	assert.True(t, info.PortSpecified)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 100, cfg.Storage.HistoryLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigWithInfo_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")
	writeFile(t, filepath.Join(dir, ".env"), "PERFREVIEW_LOG_FORMAT=console\nPERFREVIEW_MAX_UPLOAD_MB=20\n")
	t.Cleanup(func() {
		os.Unsetenv("PERFREVIEW_LOG_FORMAT")
		os.Unsetenv("PERFREVIEW_MAX_UPLOAD_MB")
	})

	cfg, info, err := LoadConfigWithInfo(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".env"), info.EnvFile)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Import.MaxUploadMB)
	assert.False(t, info.PortSpecified)
}

func TestLoadConfigWithInfo_Errors(t *testing.T) {
	_, _, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err, "an explicit path must exist")

	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server\nport = ")
	_, _, err = LoadConfigWithInfo(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Import.MaxUploadMB = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.Storage.Driver = "sqlite"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, _, err := LoadConfigWithInfo(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnsureDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.DataDir = filepath.Join(t.TempDir(), "data")

	dir, err := EnsureDataDir(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Data.DataDir, dir)
	for _, sub := range []string{"imports", "uploads", "exports"} {
		st, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
	assert.Equal(t, filepath.Join(dir, "exports", "a.xlsx"), GetDataPath(cfg, "exports", "a.xlsx"))
}
