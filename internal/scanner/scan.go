// Package scanner turns crash logs into reports, one file at a time or as a
// parallel batch.
package scanner

import (
	"context"
	"strings"

	"github.com/crashscan/backend/internal/advisory"
	"github.com/crashscan/backend/internal/matcher"
	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/parser"
	"github.com/crashscan/backend/internal/records"
)

// Env is everything a scan reads besides the log itself. It is built once
// per run and never modified, so one Env serves every worker.
type Env struct {
	Game     models.GameInfo
	Database *models.GameDatabase
	Main     *models.MainDatabase

	// LatestVersions are the crash generator version lines considered current.
	LatestVersions []string
	// IgnorePlugins is the user ignore list.
	IgnorePlugins []string
	// LoadOrder is the override file content, nil when there is none.
	LoadOrder []string

	Resolver *records.Resolver

	FCXMode    bool
	FileChecks string
	Simplify   bool
	MinLines   int
}

// ScanLog builds the report for one crash log. It does not touch the
// filesystem and only reads env.
func ScanLog(ctx context.Context, log *models.CrashLog, env *Env) (*models.Report, error) {
	if err := parser.ValidateCrashLog(log, env.MinLines); err != nil {
		return nil, err
	}

	lines := parser.Normalize(log.Lines, parser.NormalizeOptions{
		XSEAcronym: env.Game.XSEAcronym,
		Simplify:   env.Simplify,
		Exclude:    env.Main.ExcludeRecords,
	})
	segments := parser.ExtractSegments(lines, parser.DefaultLayout(env.Game.XSEAcronym))

	mainError := strings.TrimSpace(parser.MainErrorLine(lines))
	crashgen := strings.TrimSpace(parser.CrashgenLine(lines, env.Game.CrashgenName))

	reg := parser.BuildRegistry(parser.RegistryInput{
		Plugins:       segments.Lines(models.SegmentPlugins),
		XSEModules:    segments.Lines(models.SegmentXSEModules),
		AllModules:    segments.Lines(models.SegmentAllModules),
		LoadOrder:     env.LoadOrder,
		BasePlugin:    env.Game.BasePlugin,
		ModuleVendors: env.Database.ModuleVendors,
		Ignore:        env.IgnorePlugins,
	})

	callStack := segments.Lines(models.SegmentCallStack)
	gpu := advisory.DetectGPU(segments.Lines(models.SegmentSystem))

	r := &models.Report{
		LogName:          log.Name,
		MainError:        mainError,
		CrashgenVersion:  crashgen,
		CrashgenLatest:   isLatest(crashgen, env.LatestVersions),
		DLLInvolved:      matcher.DLLInvolved(mainError),
		Suspects:         matcher.Match(mainError, strings.Join(callStack, "\n"), env.Database.Rules),
		FCXMode:          env.FCXMode,
		PluginsLoaded:    reg.Loaded,
		LoadOrderApplied: reg.FromOverride,
		PluginLimit:      reg.LimitReached,
		GPU:              gpu,
		Plugins:          reg.Entries(),
	}

	if env.FCXMode {
		r.FileChecks = env.FileChecks
	} else {
		r.SettingsNotices = CrashgenSettingsNotices(
			segments.Lines(models.SegmentCrashgen),
			segments.Lines(models.SegmentXSEModules),
			env.Game.CrashgenName,
		)
	}

	if reg.Loaded {
		tables := env.Database.Advisories
		r.Frequent = advisory.DetectSingle(reg, tables.Frequent)
		r.Conflicts = advisory.DetectConflicts(reg, tables.Conflicts)
		r.Solutions = advisory.DetectSingle(reg, tables.Solutions)
		r.OPCPatched = advisory.DetectSingle(reg, tables.OPCPatched)
		r.Important = advisory.DetectImportant(reg, tables.Important, gpu)
		r.PluginSuspects = PluginSuspects(callStack, reg, env.Database.IgnorePlugins)
	}

	r.RecordSuspects = RecordSuspects(ctx, callStack, reg, env.Resolver)
	r.NamedRecords = NamedRecords(callStack, env.Main.CatchRecords, env.Database.IgnoreRecords)

	return r, nil
}

func isLatest(version string, latest []string) bool {
	for _, v := range latest {
		if v != "" && v == version {
			return true
		}
	}
	return false
}

// counter counts keys and remembers the order they were first seen in.
type counter struct {
	keys   []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
}

func (c *counter) items() []models.CountedItem {
	out := make([]models.CountedItem, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, models.CountedItem{Key: k, Count: c.counts[k]})
	}
	return out
}

// PluginSuspects counts call stack mentions of each registered plugin.
// Lines listing record modifiers and plugins matching ignore are skipped.
func PluginSuspects(callStack []string, reg *models.PluginRegistry, ignore []string) []models.CountedItem {
	entries := reg.Entries()
	c := newCounter()
	for _, line := range callStack {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "modified by:") {
			continue
		}
		for _, e := range entries {
			if strings.Contains(lower, strings.ToLower(e.Name)) && !containsFold(e.Name, ignore) {
				c.add(e.Name)
			}
		}
	}
	return c.items()
}

// RecordSuspects counts "FormID:" call stack lines and attributes each to
// the plugin owning its load-order prefix. Records of unknown plugins and
// dynamically created (0xFF) records are dropped.
func RecordSuspects(ctx context.Context, callStack []string, reg *models.PluginRegistry, resolver *records.Resolver) []models.RecordSuspect {
	c := newCounter()
	for _, line := range callStack {
		if strings.Contains(strings.ToLower(line), "formid:") && !strings.Contains(line, "0xFF") {
			c.add(strings.TrimSpace(strings.ReplaceAll(line, "0x", "")))
		}
	}

	var out []models.RecordSuspect
	for _, item := range c.items() {
		formID := formIDFromLine(item.Key)
		prefix := loadOrderPrefix(formID)
		if prefix == "" {
			continue
		}
		plugin, ok := reg.FindByMarker(prefix)
		if !ok {
			continue
		}

		s := models.RecordSuspect{Line: item.Key, FormID: formID, Plugin: plugin.Name, Count: item.Count}
		if desc, ok := resolver.Resolve(ctx, formID[len(prefix):], plugin.Name); ok {
			s.Description = desc
		}
		out = append(out, s)
	}
	return out
}

// formIDFromLine returns the hex identifier after the first colon.
func formIDFromLine(line string) string {
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// loadOrderPrefix returns the plugin index part of a form id: two digits,
// or five for light plugins in the FE space.
func loadOrderPrefix(formID string) string {
	switch {
	case strings.HasPrefix(formID, "FE") && len(formID) > 5:
		return formID[:5]
	case len(formID) > 2:
		return formID[:2]
	}
	return ""
}

// NamedRecords counts call stack lines naming a record of interest.
func NamedRecords(callStack, catch, ignore []string) []models.CountedItem {
	c := newCounter()
	for _, line := range callStack {
		if containsFold(line, catch) && !containsFold(line, ignore) {
			c.add(strings.TrimSpace(line))
		}
	}
	return c.items()
}

// containsFold reports whether s contains any of subs, ignoring case.
func containsFold(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
