package inspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type crashgenConfig struct {
	Patches struct {
		Achievements  *bool `toml:"Achievements"`
		MemoryManager *bool `toml:"MemoryManager"`
	} `toml:"Patches"`
	Compatibility struct {
		F4EE *bool `toml:"F4EE"`
	} `toml:"Compatibility"`
}

// CrashgenInspector checks the crash generator's TOML settings against the
// installed script extender plugins.
type CrashgenInspector struct {
	// PluginsDir is the script extender plugin folder.
	PluginsDir string
	// TOMLFiles are the settings file locations relative to PluginsDir,
	// preferred first.
	TOMLFiles    []string
	CrashgenName string
}

// Inspect implements Inspector.
func (ci CrashgenInspector) Inspect(ctx context.Context) string {
	var b strings.Builder
	name := ci.CrashgenName

	var found []string
	for _, rel := range ci.TOMLFiles {
		path := filepath.Join(ci.PluginsDir, rel)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}

	if len(found) > 1 {
		fmt.Fprintf(&b, "# ❌ CAUTION : BOTH VERSIONS OF %s TOML SETTINGS FILES WERE FOUND! #\n", strings.ToUpper(name))
		fmt.Fprintf(&b, "When editing %s toml settings, make sure you are editing the correct file. \n", name)
		fmt.Fprintf(&b, "Please recheck your %s installation and delete any obsolete files. \n-----\n", name)
	}

	if len(found) == 0 {
		fmt.Fprintf(&b, "# [!] NOTICE : Unable to find the %s config file, settings check will be skipped. # \n", name)
		fmt.Fprintf(&b, "  To ensure this check doesn't get skipped, %s has to be installed manually. \n", name)
		b.WriteString("  [ If you are using Mod Organizer 2, you need to run the scanner through a shortcut in MO2. ] \n-----\n")
		return b.String()
	}

	var cfg crashgenConfig
	if _, err := toml.DecodeFile(found[0], &cfg); err != nil {
		fmt.Fprintf(&b, "❌ ERROR : Unable to read %s settings file:\n  %s\n  %v\n-----\n", name, found[0], err)
		return b.String()
	}

	plugins := ci.installedPlugins()

	if isTrue(cfg.Patches.Achievements) && (plugins.has("achievements") || plugins.has("unlimitedsurvivalmode")) {
		b.WriteString("# ❌ CAUTION : The Achievements Mod and/or Unlimited Survival Mode is installed, but Achievements is set to TRUE # \n")
		fmt.Fprintf(&b, "    FIX: Open %s and change Achievements to FALSE, this prevents conflicts with %s. \n-----\n", found[0], name)
	} else {
		fmt.Fprintf(&b, "✔️ Achievements parameter is correctly configured in your %s settings! \n-----\n", name)
	}

	if isTrue(cfg.Patches.MemoryManager) && plugins.has("bakascrapheap") {
		b.WriteString("# ❌ CAUTION : The Baka ScrapHeap Mod is installed, but MemoryManager parameter is set to TRUE # \n")
		fmt.Fprintf(&b, "    FIX: Open %s and change MemoryManager to FALSE, this prevents conflicts with %s. \n-----\n", found[0], name)
	} else {
		fmt.Fprintf(&b, "✔️ Memory Manager parameter is correctly configured in your %s settings! \n-----\n", name)
	}

	if cfg.Compatibility.F4EE != nil && !*cfg.Compatibility.F4EE && plugins.has("f4ee") {
		b.WriteString("# ❌ CAUTION : Looks Menu is installed, but F4EE parameter under [Compatibility] is set to FALSE # \n")
		fmt.Fprintf(&b, "    FIX: Open %s and change F4EE to TRUE, this prevents bugs and crashes from Looks Menu. \n-----\n", found[0])
	} else {
		fmt.Fprintf(&b, "✔️ F4EE (Looks Menu) parameter is correctly configured in your %s settings! \n-----\n", name)
	}

	return b.String()
}

type fileSet []string

func (s fileSet) has(part string) bool {
	for _, name := range s {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}

func (ci CrashgenInspector) installedPlugins() fileSet {
	entries, err := os.ReadDir(ci.PluginsDir)
	if err != nil {
		return nil
	}
	names := make(fileSet, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.ToLower(e.Name()))
	}
	return names
}

func isTrue(v *bool) bool {
	return v != nil && *v
}
