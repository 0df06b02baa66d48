package models

// SegmentName identifies a marker-delimited region of a crash log.
type SegmentName string

const (
	SegmentAllModules SegmentName = "all_modules"
	SegmentXSEModules SegmentName = "xse_modules"
	SegmentCallStack  SegmentName = "call_stack"
	SegmentCrashgen   SegmentName = "crashgen"
	SegmentSystem     SegmentName = "system"
	SegmentPlugins    SegmentName = "plugins"
)

// CrashLog is the text of one crash log, split into lines without
// line terminators.
type CrashLog struct {
	Path  string
	Name  string
	Lines []string
}

// Segment is a contiguous run of trimmed lines. It never includes its
// marker lines.
type Segment struct {
	Name  SegmentName
	Lines []string
}

// Empty reports whether the segment has no lines.
func (s Segment) Empty() bool {
	return len(s.Lines) == 0
}

// Segments holds every named segment of one crash log.
type Segments map[SegmentName]Segment

// Lines returns the lines of a segment, or nil when it was not extracted.
func (s Segments) Lines(name SegmentName) []string {
	return s[name].Lines
}
