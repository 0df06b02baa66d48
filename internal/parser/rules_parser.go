package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/crashscan/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRule is returned for rule or advisory entries that do not follow
// the table grammar.
var ErrInvalidRule = errors.New("invalid rule")

// gameDatabaseFile mirrors the on-disk game database. Rule and advisory
// tables stay as nodes so their declaration order survives decoding.
type gameDatabaseFile struct {
	Info           models.GameInfo         `yaml:"Game_Info"`
	VRInfo         *models.GameInfo        `yaml:"GameVR_Info"`
	Warnings       models.CrashgenWarnings `yaml:"Warnings_CRASHGEN"`
	Hints          []string                `yaml:"Game_Hints"`
	PluginsExclude []string                `yaml:"Crashlog_Plugins_Exclude"`
	RecordsExclude []string                `yaml:"Crashlog_Records_Exclude"`
	ModuleVendors  []string                `yaml:"Crashlog_Module_Vendors"`

	ErrorCheck yaml.Node `yaml:"Crashlog_Error_Check"`
	StackCheck yaml.Node `yaml:"Crashlog_Stack_Check"`
	ModsFreq   yaml.Node `yaml:"Mods_FREQ"`
	ModsConf   yaml.Node `yaml:"Mods_CONF"`
	ModsSolu   yaml.Node `yaml:"Mods_SOLU"`
	ModsOPC2   yaml.Node `yaml:"Mods_OPC2"`
	ModsCore   yaml.Node `yaml:"Mods_CORE"`
}

type mainDatabaseFile struct {
	Info struct {
		Version     string `yaml:"version"`
		VersionDate string `yaml:"version_date"`
	} `yaml:"Info"`
	models.MainDatabase `yaml:",inline"`
}

// ParseGameDatabase parses a game database file.
func ParseGameDatabase(filePath string) (*models.GameDatabase, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseGameDatabaseFromReader(file)
}

// ParseGameDatabaseFromReader parses and validates a game database. Every
// rule and advisory is checked here so scans never see a malformed entry.
func ParseGameDatabaseFromReader(r io.Reader) (*models.GameDatabase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw gameDatabaseFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	db := &models.GameDatabase{
		Info:          raw.Info,
		Warnings:      raw.Warnings,
		Hints:         raw.Hints,
		IgnorePlugins: raw.PluginsExclude,
		IgnoreRecords: raw.RecordsExclude,
		ModuleVendors: raw.ModuleVendors,
	}
	if db.Info.BasePlugin == "" && db.Info.Name != "" {
		db.Info.BasePlugin = db.Info.Name + ".esm"
	}
	if raw.VRInfo != nil {
		vr := mergeGameInfo(db.Info, *raw.VRInfo)
		db.VRInfo = &vr
	}

	if db.Rules.ErrorRules, err = parseErrorRules(&raw.ErrorCheck); err != nil {
		return nil, err
	}
	if db.Rules.StackRules, err = parseStackRules(&raw.StackCheck); err != nil {
		return nil, err
	}
	if db.Advisories.Frequent, err = parseSingleMods("Mods_FREQ", &raw.ModsFreq); err != nil {
		return nil, err
	}
	if db.Advisories.Solutions, err = parseSingleMods("Mods_SOLU", &raw.ModsSolu); err != nil {
		return nil, err
	}
	if db.Advisories.OPCPatched, err = parseSingleMods("Mods_OPC2", &raw.ModsOPC2); err != nil {
		return nil, err
	}
	if db.Advisories.Conflicts, err = parseConflicts(&raw.ModsConf); err != nil {
		return nil, err
	}
	if db.Advisories.Important, err = parseImportant(&raw.ModsCore); err != nil {
		return nil, err
	}

	return db, nil
}

// ParseMainDatabase parses the game independent database file.
func ParseMainDatabase(filePath string) (*models.MainDatabase, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMainDatabaseFromReader(file)
}

// ParseMainDatabaseFromReader parses the game independent database.
func ParseMainDatabaseFromReader(r io.Reader) (*models.MainDatabase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw mainDatabaseFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	db := raw.MainDatabase
	db.Version = raw.Info.Version
	db.VersionDate = raw.Info.VersionDate
	return &db, nil
}

// ParsePredicate parses one stack rule token.
func ParsePredicate(token string) (models.Predicate, error) {
	if token == "" {
		return models.Predicate{}, fmt.Errorf("%w: empty predicate", ErrInvalidRule)
	}

	prefix, text, found := strings.Cut(token, "|")
	if !found {
		return models.Predicate{Kind: models.PredicatePlainStack, Text: token}, nil
	}
	if text == "" {
		return models.Predicate{}, fmt.Errorf("%w: predicate %q has no text", ErrInvalidRule, token)
	}

	switch prefix {
	case string(models.PredicateMainErrorRequired):
		return models.Predicate{Kind: models.PredicateMainErrorRequired, Text: text}, nil
	case string(models.PredicateMainErrorOptional):
		return models.Predicate{Kind: models.PredicateMainErrorOptional, Text: text}, nil
	case string(models.PredicateNegativeStack):
		return models.Predicate{Kind: models.PredicateNegativeStack, Text: text}, nil
	}

	n, err := strconv.Atoi(prefix)
	if err != nil || n < 1 {
		return models.Predicate{}, fmt.Errorf("%w: unknown predicate prefix %q", ErrInvalidRule, prefix)
	}
	return models.Predicate{Kind: models.PredicateCountAtLeast, Text: text, Count: n}, nil
}

type tableEntry struct {
	key   string
	value *yaml.Node
}

// mappingEntries returns the key/value pairs of a mapping node in file order.
// Absent and null tables are empty.
func mappingEntries(table string, node *yaml.Node) ([]tableEntry, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s must be a mapping (line %d)", ErrInvalidRule, table, node.Line)
	}

	entries := make([]tableEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		entries = append(entries, tableEntry{key: node.Content[i].Value, value: node.Content[i+1]})
	}
	return entries, nil
}

func scalarValue(table, key string, node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%w: %s %q must be a string (line %d)", ErrInvalidRule, table, key, node.Line)
	}
	if node.Tag == "!!null" {
		return "", nil
	}
	return node.Value, nil
}

func splitKey(key string) []string {
	parts := strings.Split(key, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseErrorRules(node *yaml.Node) ([]models.ErrorRule, error) {
	const table = "Crashlog_Error_Check"
	entries, err := mappingEntries(table, node)
	if err != nil {
		return nil, err
	}

	rules := make([]models.ErrorRule, 0, len(entries))
	for _, e := range entries {
		parts := splitKey(e.key)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %s key %q must be \"severity | label\"", ErrInvalidRule, table, e.key)
		}
		match, err := scalarValue(table, e.key, e.value)
		if err != nil {
			return nil, err
		}
		if match == "" {
			match = parts[1]
		}
		rules = append(rules, models.ErrorRule{Severity: parts[0], Label: parts[1], MatchString: match})
	}
	return rules, nil
}

func parseStackRules(node *yaml.Node) ([]models.StackRule, error) {
	const table = "Crashlog_Stack_Check"
	entries, err := mappingEntries(table, node)
	if err != nil {
		return nil, err
	}

	rules := make([]models.StackRule, 0, len(entries))
	for _, e := range entries {
		parts := splitKey(e.key)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %s key %q must be \"severity | label\"", ErrInvalidRule, table, e.key)
		}
		if e.value.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: %s %q must be a list of predicates", ErrInvalidRule, table, e.key)
		}

		rule := models.StackRule{Severity: parts[0], Label: parts[1]}
		for _, item := range e.value.Content {
			p, err := ParsePredicate(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%s %q: %w", table, e.key, err)
			}
			rule.Predicates = append(rule.Predicates, p)
		}
		if len(rule.Predicates) == 0 {
			return nil, fmt.Errorf("%w: %s %q has no predicates", ErrInvalidRule, table, e.key)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseSingleMods(table string, node *yaml.Node) ([]models.SingleModWarning, error) {
	entries, err := mappingEntries(table, node)
	if err != nil {
		return nil, err
	}

	out := make([]models.SingleModWarning, 0, len(entries))
	for _, e := range entries {
		text, err := scalarValue(table, e.key, e.value)
		if err != nil {
			return nil, err
		}
		pattern := strings.TrimSpace(e.key)
		if pattern == "" {
			return nil, fmt.Errorf("%w: %s has an empty key", ErrInvalidRule, table)
		}
		out = append(out, models.SingleModWarning{Pattern: pattern, Text: text})
	}
	return out, nil
}

func parseConflicts(node *yaml.Node) ([]models.ConflictWarning, error) {
	const table = "Mods_CONF"
	entries, err := mappingEntries(table, node)
	if err != nil {
		return nil, err
	}

	out := make([]models.ConflictWarning, 0, len(entries))
	for _, e := range entries {
		parts := splitKey(e.key)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %s key %q must be \"modA | modB\"", ErrInvalidRule, table, e.key)
		}
		text, err := scalarValue(table, e.key, e.value)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ConflictWarning{PatternA: parts[0], PatternB: parts[1], Text: text})
	}
	return out, nil
}

func parseImportant(node *yaml.Node) ([]models.ImportantModWarning, error) {
	const table = "Mods_CORE"
	entries, err := mappingEntries(table, node)
	if err != nil {
		return nil, err
	}

	out := make([]models.ImportantModWarning, 0, len(entries))
	for _, e := range entries {
		parts := splitKey(e.key)
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %s key %q must be \"pattern | name [| gpu]\"", ErrInvalidRule, table, e.key)
		}
		text, err := scalarValue(table, e.key, e.value)
		if err != nil {
			return nil, err
		}

		w := models.ImportantModWarning{Pattern: parts[0], Name: parts[1], Text: text}
		if len(parts) == 3 {
			switch vendor := models.GPUVendor(strings.ToLower(parts[2])); vendor {
			case models.GPUAMD, models.GPUNvidia:
				w.GPUAffinity = vendor
			default:
				return nil, fmt.Errorf("%w: %s %q has unknown gpu %q", ErrInvalidRule, table, e.key, parts[2])
			}
		} else {
			w.GPUAffinity = affinityFromText(text)
		}
		out = append(out, w)
	}
	return out, nil
}

// affinityFromText infers the vendor a mod targets from its advisory text.
func affinityFromText(text string) models.GPUVendor {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, string(models.GPUNvidia)):
		return models.GPUNvidia
	case strings.Contains(lower, string(models.GPUAMD)):
		return models.GPUAMD
	}
	return models.GPUUnknown
}

func mergeGameInfo(base, override models.GameInfo) models.GameInfo {
	merged := override
	if merged.Name == "" {
		merged.Name = base.Name
	}
	if merged.XSEAcronym == "" {
		merged.XSEAcronym = base.XSEAcronym
	}
	if merged.CrashgenName == "" {
		merged.CrashgenName = base.CrashgenName
	}
	if merged.CrashgenLatest == "" {
		merged.CrashgenLatest = base.CrashgenLatest
	}
	if merged.BasePlugin == "" {
		merged.BasePlugin = base.BasePlugin
	}
	if merged.CrashgenTOML == "" {
		merged.CrashgenTOML = base.CrashgenTOML
	}
	if merged.CrashgenTOMLAlt == "" {
		merged.CrashgenTOMLAlt = base.CrashgenTOMLAlt
	}
	if merged.XSEPluginsFolder == "" {
		merged.XSEPluginsFolder = base.XSEPluginsFolder
	}
	return merged
}
