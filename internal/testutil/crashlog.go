package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SampleCrashLog is a trimmed crash generator log with every segment the
// scanner reads. Plugin [0A] is ModA.esp and its record 0A001A2B shows up
// twice in the call stack.
const SampleCrashLog = `Fallout 4 v1.10.163
Buffout 4 v1.28.6

Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FF6E3A2B1C4 Fallout4.exe+0A2B1C4

[Compatibility]
	F4EE: true
[Fixes]
	ActorIsHostileToActor: true
	CellInit: false
[Patches]
	Achievements: true
	MemoryManager: true

SYSTEM SPECS:
	OS: Microsoft Windows 10 Pro v10.0.19045
	CPU: AuthenticAMD AMD Ryzen 7 5800X3D 8-Core Processor
	GPU #1: Nvidia GA104 [GeForce RTX 3070]
	PHYSICAL MEMORY: 14.20 GB/31.92 GB

PROBABLE CALL STACK:
	[0] 0x7FF6E3A2B1C4 Fallout4.exe+0A2B1C4
	[1] 0x7FF6E3A2C000 Fallout4.exe+0A2C000
	[2] 0x7FF6E3B10000 Fallout4.exe+0B10000

REGISTERS:
	RAX 0x0 (size_t) [0]
	RCX 0x1F2E3D4C5B0 (TESObjectREFR*)
		File: "ModA.esp"
		Flags: 0x00000000
		Name: "Rusty Sword"
		FormID: 0x0A001A2B
		FormType: Weapon (43)

STACK:
	[RSP+0  ] 0x1F2E3D4C5B0 (TESObjectREFR*)
		File: "ModA.esp"
		FormID: 0x0A001A2B

MODULES:
	Fallout4.exe 0x7FF6E2A00000
	vulkan-1.dll 0x7FFB00000000
	f4se_1_10_163.dll 0x7FFB10000000

F4SE PLUGINS:
	Buffout4.dll v1.28.6
	f4ee.dll v1.6.20

PLUGINS:
	[00]     Fallout4.esm
	[01]     DLCRobot.esm
	[0A]     ModA.esp
	[FE:000] LightMod.esl
`

// WriteCrashLog writes content as dir/name and returns the path.
func WriteCrashLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write crash log: %v", err)
	}
	return path
}

// WithoutPlugins returns log with its plugin segment removed.
func WithoutPlugins(log string) string {
	i := strings.Index(log, "\nPLUGINS:")
	if i < 0 {
		return log
	}
	return log[:i+1]
}
