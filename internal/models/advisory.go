package models

// GPUVendor is the graphics vendor detected in a crash log's system specs.
type GPUVendor string

const (
	GPUUnknown GPUVendor = ""
	GPUAMD     GPUVendor = "amd"
	GPUNvidia  GPUVendor = "nvidia"
)

// Rival returns the vendor whose mods are irrelevant for this GPU.
// Integrated or undetected GPUs are treated like AMD.
func (v GPUVendor) Rival() GPUVendor {
	if v == GPUNvidia {
		return GPUAMD
	}
	return GPUNvidia
}

// SingleModWarning is reported when any plugin name contains Pattern.
type SingleModWarning struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Text    string `json:"text" yaml:"text"`
}

// ConflictWarning is reported when both patterns are present.
type ConflictWarning struct {
	PatternA string `json:"patternA" yaml:"pattern_a"`
	PatternB string `json:"patternB" yaml:"pattern_b"`
	Text     string `json:"text" yaml:"text"`
}

// ImportantModWarning describes a mod that should be installed, optionally
// only for one GPU vendor.
type ImportantModWarning struct {
	Pattern     string    `json:"pattern" yaml:"pattern"`
	Name        string    `json:"name" yaml:"name"`
	Text        string    `json:"text" yaml:"text"`
	GPUAffinity GPUVendor `json:"gpuAffinity,omitempty" yaml:"gpu_affinity,omitempty"`
}

// AdvisoryTables groups every advisory table of a game database.
type AdvisoryTables struct {
	Frequent   []SingleModWarning    `json:"frequent"`
	Solutions  []SingleModWarning    `json:"solutions"`
	OPCPatched []SingleModWarning    `json:"opcPatched"`
	Conflicts  []ConflictWarning     `json:"conflicts"`
	Important  []ImportantModWarning `json:"important"`
}

// Count returns the total number of advisories.
func (t AdvisoryTables) Count() int {
	return len(t.Frequent) + len(t.Solutions) + len(t.OPCPatched) + len(t.Conflicts) + len(t.Important)
}

// ModHit is a single-mod advisory that matched a plugin.
type ModHit struct {
	Plugin string `json:"plugin"`
	Marker string `json:"marker"`
	Text   string `json:"text"`
}

// ImportantStatus is the outcome of an important-mod check.
type ImportantStatus string

const (
	ImportantInstalled ImportantStatus = "installed"
	ImportantMissing   ImportantStatus = "missing"
	ImportantWrongGPU  ImportantStatus = "wrong_gpu"
)

// ImportantHit is one emitted important-mod line.
type ImportantHit struct {
	Name   string          `json:"name"`
	Status ImportantStatus `json:"status"`
	Rival  GPUVendor       `json:"rival,omitempty"`
	Text   string          `json:"text,omitempty"`
}
