package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/parser"
	"github.com/crashscan/backend/internal/report"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LogPattern matches crash logs written by the crash generator.
const LogPattern = "crash-*.log"

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Jobs bounds the number of logs scanned at once. Zero means GOMAXPROCS.
	Jobs int
	// Export additionally writes the report value in this format.
	Export string
	Log    logrus.FieldLogger
}

// Runner scans crash log files and writes their reports next to them.
type Runner struct {
	env       *Env
	assembler *report.Assembler
	jobs      int
	export    string
	log       logrus.FieldLogger
}

// NewRunner creates a Runner.
func NewRunner(env *Env, assembler *report.Assembler, opts RunnerOptions) *Runner {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		env:       env,
		assembler: assembler,
		jobs:      jobs,
		export:    opts.Export,
		log:       log.WithField("component", "scanner"),
	}
}

// Discover lists crash logs in dirs, sorted and without duplicates.
// Missing directories are skipped.
func Discover(dirs ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, LogPattern))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			files = append(files, abs)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsCrashLog reports whether name looks like a crash generator log.
func IsCrashLog(name string) bool {
	ok, _ := filepath.Match(LogPattern, filepath.Base(name))
	return ok
}

// Run scans every path and returns the aggregate stats. A failing file is
// logged and counted; it never stops the others.
func (r *Runner) Run(ctx context.Context, paths []string) models.ScanStats {
	var scanned, incomplete, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rep, err := r.ScanFile(gctx, path)
			switch {
			case err != nil:
				failed.Add(1)
				r.log.WithError(err).WithField("file", filepath.Base(path)).Warn("scan failed")
			case rep.Incomplete():
				incomplete.Add(1)
			default:
				scanned.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return models.ScanStats{
		Scanned:    scanned.Load(),
		Incomplete: incomplete.Load(),
		Failed:     failed.Load(),
	}
}

// ScanFile scans one log from disk and writes its report.
func (r *Runner) ScanFile(ctx context.Context, path string) (*models.Report, error) {
	log, err := parser.LoadCrashLog(path)
	if err != nil {
		return nil, err
	}

	rep, err := ScanLog(ctx, log, r.env)
	if err != nil {
		return nil, err
	}

	out := report.FileName(path)
	if err := os.WriteFile(out, []byte(r.assembler.Render(rep)), 0644); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	if r.export != report.FormatNone {
		if err := r.writeExport(path, rep); err != nil {
			return nil, err
		}
	}

	r.log.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"suspects": len(rep.Suspects),
		"plugins":  len(rep.Plugins),
	}).Info("scanned crash log")
	return rep, nil
}

func (r *Runner) writeExport(path string, rep *models.Report) error {
	name := report.ExportFileName(path, r.export)
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	if err := report.Export(f, rep, r.export); err != nil {
		f.Close()
		os.Remove(name)
		return fmt.Errorf("writing export: %w", err)
	}
	return f.Close()
}

// ScanReader scans a log that is not on disk, as received over the API.
func ScanReader(ctx context.Context, name string, rd io.Reader, env *Env) (*models.Report, error) {
	log, err := parser.ParseCrashLog(name, rd)
	if err != nil {
		return nil, err
	}
	return ScanLog(ctx, log, env)
}
