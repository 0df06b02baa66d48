package scanner

import (
	"fmt"

	"github.com/crashscan/backend/internal/config"
	"github.com/crashscan/backend/internal/parser"
	"github.com/crashscan/backend/internal/records"
)

// NewEnv builds the scan environment for a loaded configuration. fileChecks
// is the pre-rendered FCX text; it is only shown when FCX mode is on.
func NewEnv(cfg *config.Config, resolver *records.Resolver, fileChecks string) (*Env, error) {
	loadOrder, err := parser.ReadLoadOrder(cfg.LoadOrderPath())
	if err != nil {
		return nil, fmt.Errorf("reading load order: %w", err)
	}

	return &Env{
		Game:           cfg.Info,
		Database:       cfg.Game,
		Main:           cfg.Main,
		LatestVersions: cfg.LatestVersions,
		IgnorePlugins:  cfg.IgnorePlugins,
		LoadOrder:      loadOrder,
		Resolver:       resolver,
		FCXMode:        cfg.Settings.FCXMode,
		FileChecks:     fileChecks,
		Simplify:       cfg.Settings.SimplifyLogs,
		MinLines:       cfg.Settings.MinLogLines,
	}, nil
}
