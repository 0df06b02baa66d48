// Package report renders scan results as the markdown autoscan report.
package report

import (
	"fmt"
	"strings"

	"github.com/crashscan/backend/internal/models"
)

// Suffix replaces ".log" in report file names.
const Suffix = "-AUTOSCAN.md"

const (
	rule          = "====================================================\n"
	footerRule    = "===============================================================================\n"
	labelWidth    = 30
	crashArticle  = "https://www.nexusmods.com/fallout4/articles/3115"
	suspectsDoc   = "https://docs.google.com/document/d/17FzeIMJ256xE85XdjoPvv_Zi3C5uHeSTQh6wOZugs4c"
	pluginChecker = "https://www.nexusmods.com/fallout4/articles/4141"
	opcCollection = "https://www.nexusmods.com/fallout4/mods/54872"
)

// Texts are the run-wide strings a report needs besides the scan result.
type Texts struct {
	Generator     string
	VersionDate   string
	CrashgenName  string
	WarnNoPlugins string
	WarnOutdated  string
}

// Assembler renders reports. It holds no per-report state and is safe for
// concurrent use.
type Assembler struct {
	texts Texts
}

// NewAssembler creates an Assembler.
func NewAssembler(texts Texts) *Assembler {
	return &Assembler{texts: texts}
}

// FileName returns the report path for a crash log path.
func FileName(logPath string) string {
	base := logPath
	if strings.HasSuffix(strings.ToLower(base), ".log") {
		base = base[:len(base)-len(".log")]
	}
	return base + Suffix
}

// Render returns the full report text. Sections always appear in the same
// order and histograms keep first-seen order.
func (a *Assembler) Render(r *models.Report) string {
	var b strings.Builder

	a.writeHeader(&b, r)
	a.writeSuspects(&b, r)
	a.writeChecks(&b, r)
	a.writeMods(&b, r)
	a.writeHistograms(&b, r)
	a.writeFooter(&b)

	return b.String()
}

func banner(b *strings.Builder, title string) {
	b.WriteString(rule)
	b.WriteString(title + "\n")
	b.WriteString(rule)
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func (a *Assembler) writeHeader(b *strings.Builder, r *models.Report) {
	fmt.Fprintf(b, "%s -> AUTOSCAN REPORT GENERATED BY %s \n", r.LogName, a.texts.Generator)
	b.WriteString("# FOR BEST VIEWING EXPERIENCE OPEN THIS FILE IN NOTEPAD++ OR SIMILAR # \n")
	b.WriteString("# PLEASE READ EVERYTHING CAREFULLY AND BEWARE OF FALSE POSITIVES # \n")
	b.WriteString(rule)

	if head, tail, found := strings.Cut(r.MainError, ","); found {
		fmt.Fprintf(b, "\nMain Error: %s\n%s\n", head, tail)
	} else {
		fmt.Fprintf(b, "\nMain Error: %s\n", r.MainError)
	}

	fmt.Fprintf(b, "Detected %s Version: %s \n", a.texts.CrashgenName, r.CrashgenVersion)
	if r.CrashgenLatest {
		fmt.Fprintf(b, "* You have the latest version of %s! *\n\n", a.texts.CrashgenName)
	} else {
		fmt.Fprintf(b, "%s \n", a.texts.WarnOutdated)
	}

	if r.LoadOrderApplied {
		b.WriteString("* ✔️ LOADORDER.TXT FILE FOUND! *\n")
		b.WriteString("Plugins listed in crash logs are ignored and only plugins in this file are detected.\n")
		b.WriteString("[ To disable this functionality, simply remove loadorder.txt. ]\n")
	}
}

func (a *Assembler) writeSuspects(b *strings.Builder, r *models.Report) {
	banner(b, "CHECKING IF LOG MATCHES ANY KNOWN CRASH SUSPECTS...")

	if r.DLLInvolved {
		b.WriteString("* NOTICE : MAIN ERROR REPORTS THAT A DLL FILE WAS INVOLVED IN THIS CRASH! *\n")
		b.WriteString("If that dll file belongs to a mod, that mod is a prime suspect for the crash. \n-----\n")
	}

	for _, s := range r.Suspects {
		label := s.Label
		if n := len([]rune(label)); n < labelWidth {
			label += strings.Repeat(".", labelWidth-n)
		}
		fmt.Fprintf(b, "# Checking for %s SUSPECT FOUND! > Severity : %s # \n-----\n", label, s.Severity)
	}

	if len(r.Suspects) > 0 {
		b.WriteString("* FOR DETAILED DESCRIPTIONS AND POSSIBLE SOLUTIONS TO ANY ABOVE DETECTED CRASH SUSPECTS *\n")
		fmt.Fprintf(b, "* SEE: %s *\n\n", suspectsDoc)
	} else {
		b.WriteString("# FOUND NO CRASH ERRORS / SUSPECTS THAT MATCH THE CURRENT DATABASE #\n")
		b.WriteString("Check below for mods that can cause frequent crashes and other problems.\n\n")
	}
}

func (a *Assembler) writeChecks(b *strings.Builder, r *models.Report) {
	banner(b, "CHECKING IF NECESSARY FILES/SETTINGS ARE CORRECT...")

	if r.FCXMode {
		b.WriteString("* NOTICE: FCX MODE IS ENABLED. THE SCANNER MUST BE RUN BY THE ORIGINAL USER FOR CORRECT DETECTION * \n")
		b.WriteString("[ To disable mod & game files detection, disable FCX Mode in the settings file or pass --fcx-mode=false ] \n\n")
		b.WriteString(r.FileChecks)
		return
	}

	b.WriteString("* NOTICE: FCX MODE IS DISABLED. YOU CAN ENABLE IT TO DETECT PROBLEMS IN YOUR MOD & GAME FILES * \n")
	b.WriteString("[ FCX Mode can be enabled in the settings file or with --fcx-mode ] \n\n")
	for _, notice := range r.SettingsNotices {
		b.WriteString(notice)
	}
}

func (a *Assembler) writeMods(b *strings.Builder, r *models.Report) {
	banner(b, "CHECKING FOR MODS THAT CAN CAUSE FREQUENT CRASHES...")
	switch {
	case !r.PluginsLoaded:
		b.WriteString(withNewline(a.texts.WarnNoPlugins))
	case len(r.Frequent) > 0:
		writeModHits(b, r.Frequent)
		b.WriteString("# [!] CAUTION : ANY ABOVE DETECTED MODS HAVE A MUCH HIGHER CHANCE TO CRASH YOUR GAME! #\n")
		b.WriteString("* YOU CAN DISABLE ANY / ALL OF THEM TEMPORARILY TO CONFIRM THEY CAUSED THIS CRASH. * \n\n")
	default:
		b.WriteString("# FOUND NO PROBLEMATIC MODS THAT MATCH THE CURRENT DATABASE FOR THIS CRASH LOG #\n")
		b.WriteString("THAT DOESN'T MEAN THERE AREN'T ANY! YOU SHOULD RUN PLUGIN CHECKER IN WRYE BASH \n")
		fmt.Fprintf(b, "Plugin Checker Instructions: %s \n\n", pluginChecker)
	}

	banner(b, "CHECKING FOR MODS THAT CONFLICT WITH OTHER MODS...")
	switch {
	case !r.PluginsLoaded:
		b.WriteString(withNewline(a.texts.WarnNoPlugins))
	case len(r.Conflicts) > 0:
		for _, text := range r.Conflicts {
			b.WriteString("[!] CAUTION : " + withNewline(text))
		}
		b.WriteString("# [!] CAUTION : FOUND MODS THAT ARE INCOMPATIBLE OR CONFLICT WITH YOUR OTHER MODS # \n")
		b.WriteString("* YOU SHOULD CHOOSE WHICH MOD TO KEEP AND DISABLE OR COMPLETELY REMOVE THE OTHER MOD * \n\n")
	default:
		b.WriteString("# FOUND NO MODS THAT ARE INCOMPATIBLE OR CONFLICT WITH YOUR OTHER MODS # \n\n")
	}

	banner(b, "CHECKING FOR MODS WITH SOLUTIONS & COMMUNITY PATCHES")
	switch {
	case !r.PluginsLoaded:
		b.WriteString(withNewline(a.texts.WarnNoPlugins))
	case len(r.Solutions) > 0:
		writeModHits(b, r.Solutions)
		b.WriteString("# [!] CAUTION : FOUND PROBLEMATIC MODS WITH SOLUTIONS AND COMMUNITY PATCHES # \n")
		b.WriteString("[Warnings are shown for some mods even if fixes or patches are already installed.] \n")
		b.WriteString("[To hide these warnings, add their plugin names to the ignore file. ONE PLUGIN PER LINE.] \n\n")
	default:
		b.WriteString("# FOUND NO PROBLEMATIC MODS WITH AVAILABLE SOLUTIONS AND COMMUNITY PATCHES # \n\n")
	}

	banner(b, "CHECKING FOR MODS PATCHED THROUGH OPC INSTALLER...")
	switch {
	case !r.PluginsLoaded:
		b.WriteString(withNewline(a.texts.WarnNoPlugins))
	case len(r.OPCPatched) > 0:
		writeModHits(b, r.OPCPatched)
		b.WriteString("\n* FOR PATCH REPOSITORY THAT PREVENTS CRASHES AND FIXES PROBLEMS IN THESE AND OTHER MODS,* \n")
		fmt.Fprintf(b, "* VISIT OPTIMIZATION PATCHES COLLECTION: %s * \n\n", opcCollection)
	default:
		b.WriteString("# FOUND NO PROBLEMATIC MODS THAT ARE ALREADY PATCHED THROUGH THE OPC INSTALLER # \n\n")
	}

	banner(b, "CHECKING IF IMPORTANT PATCHES & FIXES ARE INSTALLED")
	if !r.PluginsLoaded {
		b.WriteString(withNewline(a.texts.WarnNoPlugins))
		return
	}
	for _, hit := range r.Important {
		switch hit.Status {
		case models.ImportantWrongGPU:
			fmt.Fprintf(b, "❓ %s is installed, BUT YOU DON'T HAVE AN %s GPU!\n", hit.Name, strings.ToUpper(string(hit.Rival)))
			b.WriteString("THIS MOD IS NOT INTENDED FOR YOUR GPU, PLEASE REMOVE IT TO AVOID PROBLEMS!\n\n")
		case models.ImportantInstalled:
			fmt.Fprintf(b, "✔️ %s is installed!\n\n", hit.Name)
		case models.ImportantMissing:
			fmt.Fprintf(b, "❌ %s is not installed!\n%s\n", hit.Name, withNewline(hit.Text))
		}
	}
}

func writeModHits(b *strings.Builder, hits []models.ModHit) {
	for _, hit := range hits {
		fmt.Fprintf(b, "[!] FOUND : [%s] %s", hit.Marker, withNewline(hit.Text))
	}
}

func (a *Assembler) writeHistograms(b *strings.Builder, r *models.Report) {
	banner(b, "SCANNING THE LOG FOR SPECIFIC (POSSIBLE) SUSPECTS...")

	if r.PluginLimit {
		b.WriteString("# [!] CAUTION : ONE OF YOUR PLUGINS HAS THE [FF] PLUGIN INDEX VALUE #\n")
		b.WriteString("* THIS MEANS YOU ALMOST CERTAINLY WENT OVER THE GAME PLUGIN LIMIT! *\n")
		b.WriteString("Disable some of your esm/esp plugins and re-run the Crash Log Scan.\n-----\n")
	}

	b.WriteString("# LIST OF (POSSIBLE) PLUGIN SUSPECTS #\n")
	switch {
	case !r.PluginsLoaded:
		b.WriteString(withNewline(a.texts.WarnNoPlugins) + "\n")
	case len(r.PluginSuspects) > 0:
		for _, item := range r.PluginSuspects {
			fmt.Fprintf(b, "- %s | %d\n", item.Key, item.Count)
		}
		b.WriteString("\n[Last number counts how many times each Plugin Suspect shows up in the crash log.]\n")
		fmt.Fprintf(b, "These Plugins were caught by %s and some of them might be responsible for this crash.\n", a.texts.CrashgenName)
		b.WriteString("You can try disabling these plugins and recheck your game, though this method can be unreliable.\n\n")
	default:
		b.WriteString("* COULDN'T FIND ANY PLUGIN SUSPECTS *\n\n")
	}

	b.WriteString("# LIST OF (POSSIBLE) FORM ID SUSPECTS #\n")
	if len(r.RecordSuspects) > 0 {
		for _, s := range r.RecordSuspects {
			if s.Description != "" {
				fmt.Fprintf(b, "- %s | [%s] | %s | %d\n", s.Line, s.Plugin, s.Description, s.Count)
			} else {
				fmt.Fprintf(b, "- %s | [%s] | %d\n", s.Line, s.Plugin, s.Count)
			}
		}
		b.WriteString("\n[Last number counts how many times each Form ID shows up in the crash log.]\n")
		fmt.Fprintf(b, "These Form IDs were caught by %s and some of them might be related to this crash.\n", a.texts.CrashgenName)
		b.WriteString("You can try searching any listed Form IDs in FO4Edit and see if they lead to relevant records.\n\n")
	} else {
		b.WriteString("* COULDN'T FIND ANY FORM ID SUSPECTS *\n\n")
	}

	b.WriteString("# LIST OF DETECTED (NAMED) RECORDS #\n")
	if len(r.NamedRecords) > 0 {
		for _, item := range r.NamedRecords {
			fmt.Fprintf(b, "- %s | %d\n", item.Key, item.Count)
		}
		b.WriteString("\n[Last number counts how many times each Named Record shows up in the crash log.]\n")
		fmt.Fprintf(b, "These records were caught by %s and some of them might be related to this crash.\n", a.texts.CrashgenName)
		b.WriteString("Named records should give extra info on involved game objects, record types or mod files.\n\n")
	} else {
		b.WriteString("* COULDN'T FIND ANY NAMED RECORDS *\n\n")
	}
}

func (a *Assembler) writeFooter(b *strings.Builder) {
	b.WriteString("FOR FULL LIST OF MODS THAT CAUSE PROBLEMS, THEIR ALTERNATIVES AND DETAILED SOLUTIONS,\n")
	fmt.Fprintf(b, "VISIT THE %s CRASH ARTICLE: %s\n", strings.ToUpper(a.texts.CrashgenName), crashArticle)
	b.WriteString(footerRule)
	fmt.Fprintf(b, "END OF AUTOSCAN | %s | %s\n", a.texts.Generator, a.texts.VersionDate)
}
