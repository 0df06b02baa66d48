package parser

import (
	"strings"

	"github.com/crashscan/backend/internal/models"
)

// Bounds delimits a segment. Markers are matched case-insensitively.
// An empty End runs the segment to the end of the log.
type Bounds struct {
	Start string
	End   string
	// Exclude skips end-marker lines that also contain it.
	Exclude string
	// StartExclude skips start-marker lines that also contain it.
	StartExclude string
}

// SegmentSpec binds a segment name to its bounds.
type SegmentSpec struct {
	Name   models.SegmentName
	Bounds Bounds
}

// Layout is the ordered list of segments extracted from a log.
type Layout []SegmentSpec

// DefaultLayout returns the crash generator segment layout for a script
// extender acronym such as "F4SE".
func DefaultLayout(xseAcronym string) Layout {
	xse := strings.ToLower(xseAcronym)
	xsePlugins := xse + " plugins:"
	return Layout{
		{Name: models.SegmentAllModules, Bounds: Bounds{Start: "modules:", End: xsePlugins}},
		{Name: models.SegmentXSEModules, Bounds: Bounds{Start: xsePlugins, End: "plugins:", Exclude: xse}},
		{Name: models.SegmentCallStack, Bounds: Bounds{Start: "probable call stack:", End: "modules:"}},
		{Name: models.SegmentCrashgen, Bounds: Bounds{Start: "[compatibility]", End: "system specs:"}},
		{Name: models.SegmentSystem, Bounds: Bounds{Start: "system specs:", End: "probable call stack:"}},
		{Name: models.SegmentPlugins, Bounds: Bounds{Start: "plugins:", StartExclude: xse}},
	}
}

// Extract returns the trimmed lines strictly between the first start marker
// and the first following end marker. A missing start marker yields nil; a
// missing end marker runs to the end of lines.
func Extract(lines []string, start, end, exclude string) []string {
	return ExtractBounds(lines, Bounds{Start: start, End: end, Exclude: exclude})
}

// ExtractBounds is Extract with a start exclusion.
func ExtractBounds(lines []string, b Bounds) []string {
	first := indexOfMarker(lines, 0, b.Start, b.StartExclude)
	if first < 0 {
		return nil
	}
	from := first + 1

	to := len(lines)
	if b.End != "" {
		if i := indexOfMarker(lines, from, b.End, b.Exclude); i >= 0 {
			to = i
		}
	}

	out := make([]string, 0, to-from)
	for _, line := range lines[from:to] {
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

// ExtractSegments extracts every segment of layout.
func ExtractSegments(lines []string, layout Layout) models.Segments {
	segments := make(models.Segments, len(layout))
	for _, b := range layout {
		segments[b.Name] = models.Segment{
			Name:  b.Name,
			Lines: ExtractBounds(lines, b.Bounds),
		}
	}
	return segments
}

func indexOfMarker(lines []string, from int, marker, exclude string) int {
	if marker == "" {
		return -1
	}
	marker = strings.ToLower(marker)
	exclude = strings.ToLower(exclude)
	for i := from; i < len(lines); i++ {
		lower := strings.ToLower(lines[i])
		if !strings.Contains(lower, marker) {
			continue
		}
		if exclude != "" && strings.Contains(lower, exclude) {
			continue
		}
		return i
	}
	return -1
}

// Fallback line indexes used when a log has no recognizable header.
const (
	defaultCrashgenIndex  = 1
	defaultMainErrorIndex = 3
)

// MainErrorLine returns the first line mentioning an unhandled exception.
func MainErrorLine(lines []string) string {
	if i := indexOfMarker(lines, 0, "unhandled exception", ""); i >= 0 {
		return lines[i]
	}
	return lineAt(lines, defaultMainErrorIndex)
}

// CrashgenLine returns the first line naming the crash generator.
func CrashgenLine(lines []string, crashgenName string) string {
	if i := indexOfMarker(lines, 0, crashgenName, ""); i >= 0 {
		return lines[i]
	}
	return lineAt(lines, defaultCrashgenIndex)
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
