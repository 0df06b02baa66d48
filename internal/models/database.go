package models

// GameInfo holds the per-game constants a scan depends on.
type GameInfo struct {
	Name             string `json:"name" yaml:"Main_Root_Name"`
	XSEAcronym       string `json:"xseAcronym" yaml:"XSE_Acronym"`
	CrashgenName     string `json:"crashgenName" yaml:"CRASHGEN_LogName"`
	CrashgenLatest   string `json:"crashgenLatest" yaml:"CRASHGEN_LatestVer"`
	BasePlugin       string `json:"basePlugin" yaml:"Base_Plugin"`
	CrashgenTOML     string `json:"crashgenToml,omitempty" yaml:"CRASHGEN_TOML"`
	CrashgenTOMLAlt  string `json:"crashgenTomlAlt,omitempty" yaml:"CRASHGEN_TOML_Alt"`
	XSEPluginsFolder string `json:"xsePluginsFolder,omitempty" yaml:"XSE_Plugins_Folder"`
}

// CrashgenWarnings are canned notices shown in reports.
type CrashgenWarnings struct {
	NoPlugins string `json:"noPlugins" yaml:"Warn_NOPlugins"`
	Outdated  string `json:"outdated" yaml:"Warn_Outdated"`
}

// GameDatabase is the parsed, validated game rule database.
type GameDatabase struct {
	Info          GameInfo         `json:"info"`
	VRInfo        *GameInfo        `json:"vrInfo,omitempty"`
	Warnings      CrashgenWarnings `json:"warnings"`
	Hints         []string         `json:"hints"`
	IgnorePlugins []string         `json:"ignorePlugins"`
	IgnoreRecords []string         `json:"ignoreRecords"`
	ModuleVendors []string         `json:"moduleVendors"`
	Rules         RuleSet          `json:"rules"`
	Advisories    AdvisoryTables   `json:"advisories"`
}

// MainDatabase holds the game independent tables.
type MainDatabase struct {
	Version          string   `json:"version" yaml:"-"`
	VersionDate      string   `json:"versionDate" yaml:"-"`
	CatchRecords     []string `json:"catchRecords" yaml:"catch_log_records"`
	ExcludeRecords   []string `json:"excludeRecords" yaml:"exclude_log_records"`
	CatchErrors      []string `json:"catchErrors" yaml:"catch_log_errors"`
	ExcludeLogFiles  []string `json:"excludeLogFiles" yaml:"exclude_log_files"`
	ExcludeLogErrors []string `json:"excludeLogErrors" yaml:"exclude_log_errors"`
}
