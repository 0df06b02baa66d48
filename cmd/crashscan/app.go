package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/crashscan/backend/internal/config"
	"github.com/crashscan/backend/internal/inspect"
	"github.com/crashscan/backend/internal/logging"
	"github.com/crashscan/backend/internal/records"
	"github.com/crashscan/backend/internal/report"
	"github.com/crashscan/backend/internal/scanner"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app is the state every subcommand starts from.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	log       logrus.FieldLogger
	resolver  *records.Resolver
	env       *scanner.Env
	assembler *report.Assembler
}

type appOptions struct {
	// forceRecords enables record lookups whatever the settings say.
	forceRecords bool
}

func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	settingsFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.Options{
		SettingsFile: settingsFile,
		Flags:        cmd.Flags(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logOpts := cfg.Settings.Log
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logOpts.Level = "debug"
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	log := logger.WithFields(logrus.Fields{
		"run":  uuid.NewString(),
		"game": cfg.Info.Name,
	})

	resolver, err := openResolver(cfg, opts.forceRecords || cfg.Settings.ShowRecordValues, log)
	if err != nil {
		return nil, err
	}

	fileChecks := ""
	if cfg.Settings.FCXMode {
		fileChecks = newInspector(cfg, log).Inspect(commandContext(cmd))
	}

	env, err := scanner.NewEnv(cfg, resolver, fileChecks)
	if err != nil {
		resolver.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		log:       log,
		resolver:  resolver,
		env:       env,
		assembler: report.NewAssembler(cfg.ReportTexts()),
	}, nil
}

func (a *app) Close() {
	if err := a.resolver.Close(); err != nil {
		a.log.WithError(err).Warn("closing record store")
	}
}

func (a *app) runner() *scanner.Runner {
	return scanner.NewRunner(a.env, a.assembler, scanner.RunnerOptions{
		Jobs:   a.cfg.Settings.Jobs,
		Export: a.cfg.Settings.ExportFormat,
		Log:    a.log,
	})
}

// openResolver prefers the compiled store and falls back to the reference
// files when it does not exist.
func openResolver(cfg *config.Config, enabled bool, log logrus.FieldLogger) (*records.Resolver, error) {
	rs := cfg.Settings.Records
	opts := records.ResolverOptions{
		Enabled:        enabled,
		ReferenceFiles: rs.ReferenceFiles,
		Log:            log,
	}
	if enabled {
		store, err := records.OpenStore(rs.StorePath, cfg.Info.Name)
		switch {
		case errors.Is(err, records.ErrStoreUnavailable):
			log.WithField("path", rs.StorePath).Debug("no compiled record store, using reference files")
		case err != nil:
			return nil, fmt.Errorf("opening record store: %w", err)
		default:
			opts.Store = store
		}
	}

	resolver, err := records.NewResolver(opts)
	if err != nil {
		if opts.Store != nil {
			opts.Store.Close()
		}
		return nil, fmt.Errorf("loading record reference files: %w", err)
	}
	return resolver, nil
}

func newInspector(cfg *config.Config, log logrus.FieldLogger) inspect.Inspector {
	var tomls []string
	for _, name := range []string{cfg.Info.CrashgenTOML, cfg.Info.CrashgenTOMLAlt} {
		if name != "" {
			tomls = append(tomls, name)
		}
	}
	return inspect.Combined{
		inspect.CrashgenInspector{
			PluginsDir:   cfg.PluginsDir(),
			TOMLFiles:    tomls,
			CrashgenName: cfg.Info.CrashgenName,
		},
		inspect.LogErrorInspector{
			Folder:        cfg.XSELogDir(),
			CatchErrors:   cfg.Main.CatchErrors,
			ExcludeFiles:  cfg.Main.ExcludeLogFiles,
			ExcludeErrors: cfg.Main.ExcludeLogErrors,
			Log:           log,
		},
	}
}

// commandContext returns cmd's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
