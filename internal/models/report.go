package models

// CountedItem is one histogram row.
type CountedItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// RecordSuspect is one record-identifier histogram row.
type RecordSuspect struct {
	Line        string `json:"line"`
	FormID      string `json:"formId"`
	Plugin      string `json:"plugin"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
}

// Report is the result of scanning one crash log. Rendering it is a
// separate step so the same value can be exported.
type Report struct {
	LogName         string `json:"logName"`
	MainError       string `json:"mainError"`
	CrashgenVersion string `json:"crashgenVersion"`
	CrashgenLatest  bool   `json:"crashgenLatest"`
	DLLInvolved     bool   `json:"dllInvolved"`

	Suspects []SuspectMatch `json:"suspects"`

	FCXMode          bool     `json:"fcxMode"`
	FileChecks       string   `json:"fileChecks,omitempty"`
	SettingsNotices  []string `json:"settingsNotices,omitempty"`
	PluginsLoaded    bool     `json:"pluginsLoaded"`
	LoadOrderApplied bool     `json:"loadOrderApplied"`
	PluginLimit      bool     `json:"pluginLimit"`

	Frequent   []ModHit       `json:"frequent"`
	Conflicts  []string       `json:"conflicts"`
	Solutions  []ModHit       `json:"solutions"`
	OPCPatched []ModHit       `json:"opcPatched"`
	Important  []ImportantHit `json:"important"`

	PluginSuspects []CountedItem   `json:"pluginSuspects"`
	RecordSuspects []RecordSuspect `json:"recordSuspects"`
	NamedRecords   []CountedItem   `json:"namedRecords"`

	GPU     GPUVendor     `json:"gpu,omitempty"`
	Plugins []PluginEntry `json:"plugins"`
}

// Incomplete reports whether plugin dependent sections were skipped.
func (r *Report) Incomplete() bool {
	return !r.PluginsLoaded
}

// ScanStats aggregates the outcome of a batch.
type ScanStats struct {
	Scanned    int64 `json:"scanned"`
	Incomplete int64 `json:"incomplete"`
	Failed     int64 `json:"failed"`
}
