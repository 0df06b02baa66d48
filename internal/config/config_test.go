package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashscan.yaml")

	s, err := LoadSettings(path, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, "Fallout4", s.Game)
	assert.False(t, s.FCXMode)
	assert.Equal(t, 20, s.MinLogLines)
	assert.Equal(t, filepath.Join(dir, "data"), s.DataDir)
	assert.Equal(t, filepath.Join(dir, "data", "databases", "records.duckdb"), s.Records.StorePath)
	assert.Equal(t, "127.0.0.1:8089", s.ServerAddr())
	assert.Equal(t, 256, s.Server.ReportCache)
}

func TestLoadSettings_FileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashscan.yaml")
	content := "fcx_mode: true\nsimplify_logs: true\njobs: 3\nscan_path: /logs\nserver:\n  port: 9000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadSettings(path, nil)
	require.NoError(t, err)
	assert.True(t, s.FCXMode)
	assert.True(t, s.SimplifyLogs)
	assert.Equal(t, 3, s.Jobs)
	assert.Equal(t, "/logs", s.ScanPath)
	assert.Equal(t, 9000, s.Server.Port)
	// keys missing from the file keep their defaults
	assert.Equal(t, "127.0.0.1", s.Server.BindAddress)
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_path: /from-file\n"), 0644))

	t.Setenv("CRASHSCAN_SCAN_PATH", "/from-env")
	t.Setenv("CRASHSCAN_SERVER_PORT", "7000")

	s, err := LoadSettings(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/from-env", s.ScanPath)
	assert.Equal(t, 7000, s.Server.Port)
}

func TestLoadSettings_ChangedFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: 2\nsimplify_logs: true\n"), 0644))

	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.Int("jobs", 0, "")
	flags.Bool("simplify-logs", false, "")
	require.NoError(t, flags.Parse([]string{"--jobs=6"}))

	s, err := LoadSettings(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Jobs)
	assert.True(t, s.SimplifyLogs, "unchanged flag must not override the file")
}

func TestEnsureDatabases_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "databases"), 0755))
	custom := []byte("Info:\n  version: custom\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "databases", "main.yaml"), custom, 0644))

	require.NoError(t, EnsureDatabases(dir, "Fallout4"))

	data, err := os.ReadFile(filepath.Join(dir, "databases", "main.yaml"))
	require.NoError(t, err)
	assert.Equal(t, custom, data)
	assert.FileExists(t, GameDatabasePath(dir, "Fallout4"))
	assert.FileExists(t, filepath.Join(dir, "ignore.yaml"))
}

func TestEnsureDatabases_UnknownGame(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureDatabases(dir, "Skyrim"))
	assert.NoFileExists(t, GameDatabasePath(dir, "Skyrim"))
	assert.FileExists(t, filepath.Join(dir, "databases", "main.yaml"))
}

func TestLoad_BundledDatabases(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{SettingsFile: filepath.Join(dir, "crashscan.yaml"), WorkDir: dir})
	require.NoError(t, err)

	assert.Equal(t, "Fallout4", cfg.Info.Name)
	assert.Equal(t, "F4SE", cfg.Info.XSEAcronym)
	assert.Equal(t, "Buffout 4", cfg.Info.CrashgenName)
	assert.NotEmpty(t, cfg.Game.Rules.ErrorRules)
	assert.NotEmpty(t, cfg.Game.Rules.StackRules)
	assert.NotEmpty(t, cfg.Game.Hints)
	assert.NotEmpty(t, cfg.Main.CatchRecords)
	assert.Equal(t, []string{"Buffout 4 v1.28.6", "Buffout 4 v1.31.1"}, cfg.LatestVersions)
	assert.Empty(t, cfg.IgnorePlugins)
	assert.Equal(t, filepath.Join(dir, "loadorder.txt"), cfg.LoadOrderPath())

	texts := cfg.ReportTexts()
	assert.Equal(t, cfg.Main.Version, texts.Generator)
	assert.Contains(t, texts.WarnNoPlugins, "PLUGIN LIST")

	info := cfg.RulesInfo()
	assert.Equal(t, len(cfg.Game.Rules.ErrorRules), info.ErrorRuleCount)
	assert.Equal(t, cfg.Game.Advisories.Count(), info.AdvisoryCount)
}

func TestLoad_VRModeSelectsVRInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vr_mode: true\nini_path: /docs\ngame_path: /game\n"), 0644))

	cfg, err := Load(Options{SettingsFile: path, WorkDir: dir})
	require.NoError(t, err)

	assert.Equal(t, "Fallout4VR", cfg.Info.Name)
	assert.Equal(t, "F4SEVR", cfg.Info.XSEAcronym)
	// inherited from the base game info
	assert.Equal(t, "Buffout 4", cfg.Info.CrashgenName)
	assert.Equal(t, filepath.Join("/docs", "F4SEVR"), cfg.XSELogDir())
	assert.Equal(t, filepath.Join("/game", "Data", "F4SE", "Plugins"), cfg.PluginsDir())
	assert.Equal(t, []string{dir, filepath.Join("/docs", "F4SEVR")}, cfg.ScanDirs())
}

func TestLoad_IgnoreFile(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "ignore.yaml"),
		[]byte("Ignore_Plugins:\n  - SomeMod.esp\n  - ''\n  - ' Other.esm '\n"), 0644))

	cfg, err := Load(Options{SettingsFile: filepath.Join(dir, "crashscan.yaml"), WorkDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"SomeMod.esp", "Other.esm"}, cfg.IgnorePlugins)
}

func TestLoad_InvalidGameDatabase(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "databases"), 0755))
	bad := "Crashlog_Stack_Check:\n  \"5 | Broken\":\n    - \"XX|text\"\n"
	require.NoError(t, os.WriteFile(GameDatabasePath(dataDir, "Fallout4"), []byte(bad), 0644))

	_, err := Load(Options{SettingsFile: filepath.Join(dir, "crashscan.yaml"), WorkDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fallout4 database")
}
