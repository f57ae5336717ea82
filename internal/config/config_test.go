package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabtree.yaml")
	content := `
port: 20000
locale: ja
timezone: Asia/Tokyo
restore:
  batch_size: 25
  batch_delay: 2s
  order: breadth-first
  substitute_privileged: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 20000, cfg.Port)
	require.Equal(t, "ja", cfg.Locale)
	require.Equal(t, 25, cfg.Restore.BatchSize)
	require.Equal(t, 2*time.Second, cfg.Restore.BatchDelay)
	require.Equal(t, "breadth-first", cfg.Restore.Order)
	require.False(t, cfg.Restore.SubstitutePrivileged)

	// Unset keys keep their defaults.
	require.True(t, cfg.Restore.Reorder)
	require.Equal(t, 10*time.Second, cfg.CallTimeout)
	require.Equal(t, "Asia/Tokyo", cfg.Timezone)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 20000\n"), 0644))
	t.Setenv("TABTREE_PORT", "20001")
	t.Setenv("TABTREE_RESTORE_BATCH_SIZE", "3")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 20001, cfg.Port)
	require.Equal(t, 3, cfg.Restore.BatchSize)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("restore:\n  order: random\n"), 0644))
	_, err := LoadFromFile(bad)
	require.Error(t, err)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLocationFallback(t *testing.T) {
	cfg := Default()
	require.Equal(t, time.Local, cfg.Location())
	cfg.Timezone = "Not/AZone"
	require.Equal(t, time.Local, cfg.Location())
}

func TestLoadFromFile_ProfileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export_dir: /srv/tabs\n"), 0644))
	t.Setenv("TABTREE_PROFILE", "work")
	t.Setenv("TABTREE_FIREFOX_DIR", "/opt/firefox-profiles")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "work", cfg.Profile)
	require.Equal(t, "/opt/firefox-profiles", cfg.FirefoxDir)
	require.Equal(t, "/srv/tabs", cfg.ExportDir)
}

func TestExportPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{ExportDir: "/srv/tabs"}
	require.Equal(t, "/srv/tabs/firefox_tab_list_20250201_000405.json", cfg.ExportPath("firefox_tab_list_20250201_000405.json"))

	cfg.ExportDir = "~/exports"
	require.Equal(t, filepath.Join(home, "exports", "a.tsv"), cfg.ExportPath("a.tsv"))

	cfg.ExportDir = ""
	require.Equal(t, "a.tsv", cfg.ExportPath("a.tsv"))
}
