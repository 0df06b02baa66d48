package scanner

import (
	"fmt"
	"strings"
)

// Settings with dedicated checks, or that are expected to be off.
var crashgenQuietSettings = []string{"F4EE", "WaitForDebugger", "Achievements", "InputSwitch", "MemoryManager", "MemoryManagerDebug"}

// CrashgenSettingsNotices checks the crash generator settings echoed in the
// log against the installed script extender plugins.
func CrashgenSettingsNotices(settings, xseModules []string, crashgenName string) []string {
	var notices []string
	for _, line := range settings {
		lower := strings.ToLower(line)

		if strings.Contains(lower, "false") && !containsFold(line, crashgenQuietSettings) {
			key, _, _ := strings.Cut(line, ":")
			notices = append(notices, fmt.Sprintf("* NOTICE : %s is disabled in your %s settings, is this intentional? * \n-----\n", strings.TrimSpace(key), crashgenName))
		}

		switch {
		case strings.Contains(lower, "achievements:"):
			if strings.Contains(lower, "true") && (hasModule(xseModules, "achievements.dll") || hasModule(xseModules, "unlimitedsurvivalmode.dll")) {
				notices = append(notices,
					"# ❌ CAUTION : The Achievements Mod and/or Unlimited Survival Mode is installed, but Achievements is set to TRUE #\n",
					fmt.Sprintf(" FIX: Open %s's TOML file and change Achievements to FALSE, this prevents conflicts with %s.\n-----\n", crashgenName, crashgenName))
			} else {
				notices = append(notices, fmt.Sprintf("✔️ Achievements parameter is correctly configured in your %s settings! \n-----\n", crashgenName))
			}
		case strings.Contains(lower, "memorymanager:"):
			if strings.Contains(lower, "true") && hasModule(xseModules, "bakascrapheap.dll") {
				notices = append(notices,
					"# ❌ CAUTION : The Baka ScrapHeap Mod is installed, but MemoryManager parameter is set to TRUE #\n",
					fmt.Sprintf(" FIX: Open %s's TOML file and change MemoryManager to FALSE, this prevents conflicts with %s.\n-----\n", crashgenName, crashgenName))
			} else {
				notices = append(notices, fmt.Sprintf("✔️ Memory Manager parameter is correctly configured in your %s settings! \n-----\n", crashgenName))
			}
		case strings.Contains(lower, "f4ee:"):
			if strings.Contains(lower, "false") && hasModule(xseModules, "f4ee.dll") {
				notices = append(notices,
					"# ❌ CAUTION : Looks Menu is installed, but F4EE parameter under [Compatibility] is set to FALSE #\n",
					fmt.Sprintf(" FIX: Open %s's TOML file and change F4EE to TRUE, this prevents bugs and crashes from Looks Menu.\n-----\n", crashgenName))
			} else {
				notices = append(notices, fmt.Sprintf("✔️ F4EE (Looks Menu) parameter is correctly configured in your %s settings! \n-----\n", crashgenName))
			}
		}
	}
	return notices
}

func hasModule(modules []string, dll string) bool {
	for _, m := range modules {
		if strings.Contains(strings.ToLower(m), dll) {
			return true
		}
	}
	return false
}
