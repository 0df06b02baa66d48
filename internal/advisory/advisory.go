// Package advisory cross-references a plugin registry against the mod
// advisory tables.
package advisory

import (
	"strings"

	"github.com/crashscan/backend/internal/models"
)

// DetectSingle reports each advisory whose pattern occurs in a plugin name.
// Only the first matching plugin is reported per advisory.
func DetectSingle(reg *models.PluginRegistry, table []models.SingleModWarning) []models.ModHit {
	entries := reg.Entries()
	var hits []models.ModHit
	for _, w := range table {
		pattern := strings.ToLower(w.Pattern)
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Name), pattern) {
				hits = append(hits, models.ModHit{Plugin: e.Name, Marker: e.Marker, Text: w.Text})
				break
			}
		}
	}
	return hits
}

// DetectConflicts reports each pair whose two patterns are both installed.
func DetectConflicts(reg *models.PluginRegistry, table []models.ConflictWarning) []string {
	entries := reg.Entries()
	var hits []string
	for _, w := range table {
		if installed(entries, w.PatternA) && installed(entries, w.PatternB) {
			hits = append(hits, w.Text)
		}
	}
	return hits
}

// DetectImportant checks the important mods against the registry and the
// detected GPU. Mods aimed at the rival vendor are flagged when installed
// and stay silent when missing.
func DetectImportant(reg *models.PluginRegistry, table []models.ImportantModWarning, gpu models.GPUVendor) []models.ImportantHit {
	entries := reg.Entries()
	rival := gpu.Rival()

	var hits []models.ImportantHit
	for _, w := range table {
		forRival := w.GPUAffinity != models.GPUUnknown && w.GPUAffinity == rival
		switch {
		case installed(entries, w.Pattern) && forRival:
			hits = append(hits, models.ImportantHit{Name: w.Name, Status: models.ImportantWrongGPU, Rival: rival})
		case installed(entries, w.Pattern):
			hits = append(hits, models.ImportantHit{Name: w.Name, Status: models.ImportantInstalled})
		case !forRival:
			hits = append(hits, models.ImportantHit{Name: w.Name, Status: models.ImportantMissing, Text: w.Text})
		}
	}
	return hits
}

// DetectGPU reads the GPU vendor from the system specs segment.
func DetectGPU(systemSpecs []string) models.GPUVendor {
	for _, line := range systemSpecs {
		if !strings.Contains(line, "GPU") {
			continue
		}
		switch {
		case strings.Contains(line, "AMD"):
			return models.GPUAMD
		case strings.Contains(line, "Nvidia"):
			return models.GPUNvidia
		}
	}
	return models.GPUUnknown
}

func installed(entries []models.PluginEntry, pattern string) bool {
	pattern = strings.ToLower(pattern)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), pattern) {
			return true
		}
	}
	return false
}
