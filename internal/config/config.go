package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/parser"
	"github.com/crashscan/backend/internal/report"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

const (
	databasesDir = "databases"
	mainDatabase = "main.yaml"
	ignoreFile   = "ignore.yaml"
	// LoadOrderFile overrides the plugin list of every crash log when it
	// exists in the working directory.
	LoadOrderFile = "loadorder.txt"
)

// Options tells Load where to find things.
type Options struct {
	// SettingsFile defaults to DefaultSettingsFile.
	SettingsFile string
	// Flags are bound over the settings file when set.
	Flags *pflag.FlagSet
	// WorkDir is searched for crash logs and the load order file. Defaults
	// to the current directory.
	WorkDir string
}

// Config is everything a run reads. It is built once and not modified.
type Config struct {
	Settings     Settings
	SettingsFile string
	WorkDir      string

	Main *models.MainDatabase
	Game *models.GameDatabase
	// Info is the game info for the selected edition (VR or not).
	Info models.GameInfo

	LatestVersions []string
	IgnorePlugins  []string
}

type ignoreFileContent struct {
	Plugins []string `yaml:"Ignore_Plugins"`
}

// Load reads the settings and the databases, writing default databases to
// the data dir first when they are missing.
func Load(opts Options) (*Config, error) {
	settingsFile := opts.SettingsFile
	if settingsFile == "" {
		settingsFile = DefaultSettingsFile
	}
	settings, err := LoadSettings(settingsFile, opts.Flags)
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	if err := EnsureDatabases(settings.DataDir, settings.Game); err != nil {
		return nil, err
	}

	main, err := parser.ParseMainDatabase(filepath.Join(settings.DataDir, databasesDir, mainDatabase))
	if err != nil {
		return nil, fmt.Errorf("loading main database: %w", err)
	}
	game, err := parser.ParseGameDatabase(GameDatabasePath(settings.DataDir, settings.Game))
	if err != nil {
		return nil, fmt.Errorf("loading %s database: %w", settings.Game, err)
	}
	ignore, err := readIgnoreFile(filepath.Join(settings.DataDir, ignoreFile))
	if err != nil {
		return nil, fmt.Errorf("loading ignore file: %w", err)
	}

	cfg := &Config{
		Settings:      settings,
		SettingsFile:  settingsFile,
		WorkDir:       workDir,
		Main:          main,
		Game:          game,
		Info:          game.Info,
		IgnorePlugins: ignore,
	}
	if settings.VRMode && game.VRInfo != nil {
		cfg.Info = *game.VRInfo
	}
	for _, v := range []string{game.Info.CrashgenLatest, vrLatest(game)} {
		if v != "" {
			cfg.LatestVersions = append(cfg.LatestVersions, v)
		}
	}
	return cfg, nil
}

func vrLatest(game *models.GameDatabase) string {
	if game.VRInfo == nil {
		return ""
	}
	return game.VRInfo.CrashgenLatest
}

// GameDatabasePath returns where the database of game lives under dataDir.
func GameDatabasePath(dataDir, game string) string {
	return filepath.Join(dataDir, databasesDir, strings.ToLower(game)+".yaml")
}

// EnsureDatabases writes the bundled databases and ignore file into dataDir
// unless a file of the same name already exists. Existing files are never
// overwritten.
func EnsureDatabases(dataDir, game string) error {
	if err := os.MkdirAll(filepath.Join(dataDir, databasesDir), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}

	targets := map[string]string{
		"defaults/" + mainDatabase:                   filepath.Join(dataDir, databasesDir, mainDatabase),
		"defaults/" + strings.ToLower(game) + ".yaml": GameDatabasePath(dataDir, game),
		"defaults/" + ignoreFile:                     filepath.Join(dataDir, ignoreFile),
	}
	for src, dst := range targets {
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := defaultFiles.ReadFile(src)
		if errors.Is(err, fs.ErrNotExist) {
			// no bundled database for this game; the user must supply one
			continue
		}
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}
	return nil
}

func readIgnoreFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var content ignoreFileContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, err
	}
	out := content.Plugins[:0]
	for _, p := range content.Plugins {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ScanDirs returns the folders searched for crash logs: the working
// directory, the script extender log folder and the custom scan path.
func (c *Config) ScanDirs() []string {
	dirs := []string{c.WorkDir}
	if xse := c.XSELogDir(); xse != "" {
		dirs = append(dirs, xse)
	}
	if c.Settings.ScanPath != "" {
		dirs = append(dirs, c.Settings.ScanPath)
	}
	return dirs
}

// XSELogDir is where the script extender and the crash generator write
// their logs.
func (c *Config) XSELogDir() string {
	if c.Settings.INIPath == "" || c.Info.XSEAcronym == "" {
		return ""
	}
	return filepath.Join(c.Settings.INIPath, c.Info.XSEAcronym)
}

// PluginsDir is the script extender plugin folder of the game install.
func (c *Config) PluginsDir() string {
	if c.Settings.GamePath == "" || c.Info.XSEPluginsFolder == "" {
		return ""
	}
	return filepath.Join(c.Settings.GamePath, filepath.FromSlash(c.Info.XSEPluginsFolder))
}

// LoadOrderPath is the optional plugin list override.
func (c *Config) LoadOrderPath() string {
	return filepath.Join(c.WorkDir, LoadOrderFile)
}

// ReportTexts returns the run-wide report strings.
func (c *Config) ReportTexts() report.Texts {
	return report.Texts{
		Generator:     c.Main.Version,
		VersionDate:   c.Main.VersionDate,
		CrashgenName:  c.Info.CrashgenName,
		WarnNoPlugins: c.Game.Warnings.NoPlugins,
		WarnOutdated:  c.Game.Warnings.Outdated,
	}
}

// RulesInfo summarizes the loaded rule tables.
func (c *Config) RulesInfo() models.RulesInfo {
	return models.RulesInfo{
		Game:            c.Info.Name,
		ErrorRuleCount:  len(c.Game.Rules.ErrorRules),
		StackRuleCount:  len(c.Game.Rules.StackRules),
		AdvisoryCount:   c.Game.Advisories.Count(),
		DatabaseVersion: c.Main.Version,
	}
}
