package advisory

import (
	"testing"

	"github.com/crashscan/backend/internal/models"
	"github.com/google/go-cmp/cmp"
)

func newRegistry(names ...string) *models.PluginRegistry {
	reg := models.NewPluginRegistry()
	for i, name := range names {
		reg.Add(name, string(rune('A'+i)))
	}
	return reg
}

func TestDetectSingle(t *testing.T) {
	reg := newRegistry("Fallout4.esm", "Scrap Everything.esp", "scrap_patch.esp")
	table := []models.SingleModWarning{
		{Pattern: "Unrelated", Text: "never"},
		{Pattern: "SCRAP", Text: "Scrap mods break precombines."},
	}

	want := []models.ModHit{{Plugin: "Scrap Everything.esp", Marker: "B", Text: "Scrap mods break precombines."}}
	if diff := cmp.Diff(want, DetectSingle(reg, table)); diff != "" {
		t.Errorf("DetectSingle() mismatch (-want +got):\n%s", diff)
	}

	if hits := DetectSingle(models.NewPluginRegistry(), table); hits != nil {
		t.Errorf("expected no hits on an empty registry, got %v", hits)
	}
}

func TestDetectConflicts(t *testing.T) {
	reg := newRegistry("ModA.esp", "ModB.esp")
	table := []models.ConflictWarning{
		{PatternA: "moda", PatternB: "modb", Text: "A and B conflict"},
		{PatternA: "moda", PatternB: "modc", Text: "A and C conflict"},
	}

	want := []string{"A and B conflict"}
	if diff := cmp.Diff(want, DetectConflicts(reg, table)); diff != "" {
		t.Errorf("DetectConflicts() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectImportant(t *testing.T) {
	table := []models.ImportantModWarning{
		{Pattern: "Buffout4", Name: "Buffout 4", Text: "Install Buffout 4."},
		{Pattern: "Weapon Debris", Name: "Weapon Debris Crash Fix", Text: "Nvidia only.", GPUAffinity: models.GPUNvidia},
		{Pattern: "Vulkan", Name: "Vulkan Renderer", Text: "AMD only.", GPUAffinity: models.GPUAMD},
	}

	tests := []struct {
		name string
		reg  *models.PluginRegistry
		gpu  models.GPUVendor
		want []models.ImportantHit
	}{
		{
			name: "nvidia with everything installed",
			reg:  newRegistry("Buffout4.dll", "Weapon Debris Crash Fix.dll", "vulkan-1.dll"),
			gpu:  models.GPUNvidia,
			want: []models.ImportantHit{
				{Name: "Buffout 4", Status: models.ImportantInstalled},
				{Name: "Weapon Debris Crash Fix", Status: models.ImportantInstalled},
				{Name: "Vulkan Renderer", Status: models.ImportantWrongGPU, Rival: models.GPUAMD},
			},
		},
		{
			name: "nvidia with nothing installed",
			reg:  newRegistry(),
			gpu:  models.GPUNvidia,
			want: []models.ImportantHit{
				{Name: "Buffout 4", Status: models.ImportantMissing, Text: "Install Buffout 4."},
				{Name: "Weapon Debris Crash Fix", Status: models.ImportantMissing, Text: "Nvidia only."},
			},
		},
		{
			name: "unknown gpu treated like amd",
			reg:  newRegistry("Weapon Debris Crash Fix.dll"),
			gpu:  models.GPUUnknown,
			want: []models.ImportantHit{
				{Name: "Buffout 4", Status: models.ImportantMissing, Text: "Install Buffout 4."},
				{Name: "Weapon Debris Crash Fix", Status: models.ImportantWrongGPU, Rival: models.GPUNvidia},
				{Name: "Vulkan Renderer", Status: models.ImportantMissing, Text: "AMD only."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, DetectImportant(tt.reg, table, tt.gpu)); diff != "" {
				t.Errorf("DetectImportant() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectGPU(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  models.GPUVendor
	}{
		{"nvidia", []string{"CPU: AuthenticAMD AMD Ryzen 7", "GPU #1: Nvidia GA104"}, models.GPUNvidia},
		{"amd", []string{"GPU #1: AMD Navi 21"}, models.GPUAMD},
		{"unknown", []string{"GPU #1: Intel UHD"}, models.GPUUnknown},
		{"none", nil, models.GPUUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectGPU(tt.lines); got != tt.want {
				t.Errorf("DetectGPU() = %q, want %q", got, tt.want)
			}
		})
	}
}
