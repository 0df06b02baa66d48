package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/crashscan/backend/internal/models"
)

// DefaultModuleVendors are module name tokens worth listing from the
// generic module segment.
var DefaultModuleVendors = []string{"vulkan"}

// RegistryInput holds every source the plugin registry is built from.
type RegistryInput struct {
	Plugins    []string
	XSEModules []string
	AllModules []string
	// LoadOrder, when non-nil, replaces the three segments above.
	// Its first line is a header and is skipped.
	LoadOrder []string

	BasePlugin    string
	ModuleVendors []string
	Ignore        []string
}

var pluginLineCleaner = strings.NewReplacer("[", "", ":", "", "]", "")

// BuildRegistry merges the plugin sources into one registry. Earlier sources
// win over later ones and ignored names are removed last.
func BuildRegistry(in RegistryInput) *models.PluginRegistry {
	reg := models.NewPluginRegistry()

	if in.LoadOrder != nil {
		reg.Loaded = true
		reg.FromOverride = true
		for i, line := range in.LoadOrder {
			name := strings.TrimSpace(line)
			if i == 0 || name == "" {
				continue
			}
			reg.Add(name, models.MarkerLoadOrder)
		}
		return applyIgnore(reg, in.Ignore)
	}

	for _, line := range in.Plugins {
		index, name, ok := parsePluginLine(line)
		if !ok {
			continue
		}
		if isAllF(index) {
			reg.LimitReached = true
		}
		reg.Add(name, index)
		if in.BasePlugin == "" || strings.EqualFold(name, in.BasePlugin) {
			reg.Loaded = true
		}
	}

	for _, line := range in.XSEModules {
		name := strings.TrimSpace(line)
		if before, _, found := strings.Cut(name, " v"); found {
			name = strings.TrimSpace(before)
		}
		if name != "" {
			reg.Add(name, models.MarkerDLL)
		}
	}

	vendors := in.ModuleVendors
	if len(vendors) == 0 {
		vendors = DefaultModuleVendors
	}
	for _, line := range in.AllModules {
		lower := strings.ToLower(line)
		for _, vendor := range vendors {
			if !strings.Contains(lower, strings.ToLower(vendor)) {
				continue
			}
			if fields := strings.Fields(line); len(fields) > 0 {
				reg.Add(fields[0], models.MarkerDLL)
			}
			break
		}
	}

	return applyIgnore(reg, in.Ignore)
}

// parsePluginLine splits "[0A] Name.esp" or "[FE:001] Name.esl" into its
// index and name.
func parsePluginLine(line string) (index, name string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return "", "", false
	}
	cleaned := strings.TrimSpace(pluginLineCleaner.Replace(line))
	index, name, found := strings.Cut(cleaned, " ")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if index == "" || name == "" {
		return "", "", false
	}
	return index, name, true
}

func isAllF(index string) bool {
	return index != "" && strings.Trim(index, "Ff") == ""
}

func applyIgnore(reg *models.PluginRegistry, ignore []string) *models.PluginRegistry {
	if len(ignore) == 0 {
		return reg
	}
	return reg.Filter(func(e models.PluginEntry) bool {
		for _, item := range ignore {
			if strings.EqualFold(strings.TrimSpace(item), e.Name) {
				return false
			}
		}
		return true
	})
}

// ReadLoadOrder reads a load order override file. A missing file returns
// nil without error.
func ReadLoadOrder(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening load order: %w", err)
	}
	defer file.Close()

	lines := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.TrimPrefix(scanner.Text(), "\ufeff"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading load order: %w", err)
	}
	return lines, nil
}
