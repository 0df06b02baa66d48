// Package config loads user settings and the rule databases a run needs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crashscan/backend/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. CRASHSCAN_SCAN_PATH.
const EnvPrefix = "CRASHSCAN"

// DefaultSettingsFile is created next to the binary on first run.
const DefaultSettingsFile = "crashscan.yaml"

// Settings are the user preferences read from the settings file.
type Settings struct {
	Game             string `mapstructure:"game" yaml:"game"`
	FCXMode          bool   `mapstructure:"fcx_mode" yaml:"fcx_mode"`
	SimplifyLogs     bool   `mapstructure:"simplify_logs" yaml:"simplify_logs"`
	ShowRecordValues bool   `mapstructure:"show_record_values" yaml:"show_record_values"`
	VRMode           bool   `mapstructure:"vr_mode" yaml:"vr_mode"`

	// ScanPath is an extra folder searched for crash logs.
	ScanPath string `mapstructure:"scan_path" yaml:"scan_path"`
	// INIPath is the game documents folder holding the INI files and the
	// script extender logs.
	INIPath string `mapstructure:"ini_path" yaml:"ini_path"`
	// GamePath is the game install folder, used by FCX mode.
	GamePath string `mapstructure:"game_path" yaml:"game_path"`

	Jobs         int    `mapstructure:"jobs" yaml:"jobs"`
	MinLogLines  int    `mapstructure:"min_log_lines" yaml:"min_log_lines"`
	ExportFormat string `mapstructure:"export_format" yaml:"export_format"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`

	Log     logging.Options `mapstructure:"log" yaml:"log"`
	Server  ServerSettings  `mapstructure:"server" yaml:"server"`
	Records RecordSettings  `mapstructure:"records" yaml:"records"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Port         int    `mapstructure:"port" yaml:"port"`
	BindAddress  string `mapstructure:"bind_address" yaml:"bind_address"`
	EnableCORS   bool   `mapstructure:"enable_cors" yaml:"enable_cors"`
	AllowOrigins string `mapstructure:"allow_origins" yaml:"allow_origins"`
	BodyLimit    string `mapstructure:"body_limit" yaml:"body_limit"`
	// ReportCache is how many scanned reports stay downloadable as JSON or
	// msgpack.
	ReportCache int `mapstructure:"report_cache" yaml:"report_cache"`
}

// RecordSettings locates the record description sources.
type RecordSettings struct {
	StorePath      string   `mapstructure:"store_path" yaml:"store_path"`
	ReferenceFiles []string `mapstructure:"reference_files" yaml:"reference_files"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		Game:        "Fallout4",
		FCXMode:     false,
		MinLogLines: 20,
		DataDir:     "./data",
		Log:         logging.DefaultOptions(),
		Server: ServerSettings{
			Port:         8089,
			BindAddress:  "127.0.0.1",
			EnableCORS:   true,
			AllowOrigins: "*",
			BodyLimit:    "50M",
			ReportCache:  256,
		},
		Records: RecordSettings{
			StorePath: "databases/records.duckdb",
			ReferenceFiles: []string{
				"databases/records_main.txt",
				"databases/records_mods.txt",
			},
		},
	}
}

// flagKeys maps command line flags to settings keys.
var flagKeys = map[string]string{
	"fcx-mode":      "fcx_mode",
	"simplify-logs": "simplify_logs",
	"show-values":   "show_record_values",
	"vr-mode":       "vr_mode",
	"scan-path":     "scan_path",
	"ini-path":      "ini_path",
	"game-path":     "game_path",
	"jobs":          "jobs",
	"export":        "export_format",
	"data-dir":      "data_dir",
	"port":          "server.port",
	"bind":          "server.bind_address",
	"log-level":     "log.level",
}

func setDefaults(v *viper.Viper, s Settings) {
	v.SetDefault("game", s.Game)
	v.SetDefault("fcx_mode", s.FCXMode)
	v.SetDefault("simplify_logs", s.SimplifyLogs)
	v.SetDefault("show_record_values", s.ShowRecordValues)
	v.SetDefault("vr_mode", s.VRMode)
	v.SetDefault("scan_path", s.ScanPath)
	v.SetDefault("ini_path", s.INIPath)
	v.SetDefault("game_path", s.GamePath)
	v.SetDefault("jobs", s.Jobs)
	v.SetDefault("min_log_lines", s.MinLogLines)
	v.SetDefault("export_format", s.ExportFormat)
	v.SetDefault("data_dir", s.DataDir)

	v.SetDefault("log.level", s.Log.Level)
	v.SetDefault("log.format", s.Log.Format)
	v.SetDefault("log.output", s.Log.Output)
	v.SetDefault("log.file", s.Log.File)
	v.SetDefault("log.max_size_mb", s.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", s.Log.MaxBackups)
	v.SetDefault("log.max_age_days", s.Log.MaxAgeDays)
	v.SetDefault("log.compress", s.Log.Compress)

	v.SetDefault("server.port", s.Server.Port)
	v.SetDefault("server.bind_address", s.Server.BindAddress)
	v.SetDefault("server.enable_cors", s.Server.EnableCORS)
	v.SetDefault("server.allow_origins", s.Server.AllowOrigins)
	v.SetDefault("server.body_limit", s.Server.BodyLimit)
	v.SetDefault("server.report_cache", s.Server.ReportCache)

	v.SetDefault("records.store_path", s.Records.StorePath)
	v.SetDefault("records.reference_files", s.Records.ReferenceFiles)
}

// LoadSettings reads the settings file, creating it with defaults when it
// does not exist. Environment variables and changed flags override the file.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	if path == "" {
		path = DefaultSettingsFile
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveSettings(path, DefaultSettings()); err != nil {
			return Settings{}, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultSettings())
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}

	s.resolvePaths(filepath.Dir(path))
	return s, nil
}

// SaveSettings writes s as YAML.
func SaveSettings(path string, s Settings) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	header := []byte("# crashscan settings\n# This file is auto-generated on first run\n\n")
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(header, out...), 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// resolvePaths makes the data dir absolute against the settings file
// location and the record paths absolute against the data dir.
func (s *Settings) resolvePaths(baseDir string) {
	if s.DataDir == "" {
		s.DataDir = DefaultSettings().DataDir
	}
	if !filepath.IsAbs(s.DataDir) {
		s.DataDir = filepath.Join(baseDir, s.DataDir)
	}
	if s.Records.StorePath != "" && !filepath.IsAbs(s.Records.StorePath) {
		s.Records.StorePath = filepath.Join(s.DataDir, s.Records.StorePath)
	}
	for i, p := range s.Records.ReferenceFiles {
		if !filepath.IsAbs(p) {
			s.Records.ReferenceFiles[i] = filepath.Join(s.DataDir, p)
		}
	}
	if s.Log.Output == "file" && s.Log.File != "" && !filepath.IsAbs(s.Log.File) {
		s.Log.File = filepath.Join(s.DataDir, s.Log.File)
	}
}

// ServerAddr returns the API listen address.
func (s Settings) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Server.BindAddress, s.Server.Port)
}
