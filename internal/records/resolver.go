package records

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Enabled turns lookups on. A disabled resolver never finds anything.
	Enabled bool
	// Store is the compiled database. When nil the reference files are used.
	Store Store
	// ReferenceFiles are searched in order; the curated file comes first.
	ReferenceFiles []string
	Log            logrus.FieldLogger
}

// Resolver looks up record descriptions, first in the compiled store and,
// when there is none, in the plain-text reference files. It is safe for
// concurrent use once built.
type Resolver struct {
	enabled bool
	store   Store
	tables  [][]Entry
	log     logrus.FieldLogger
}

// NewResolver builds a resolver. Reference files are read up front; missing
// files are skipped.
func NewResolver(opts ResolverOptions) (*Resolver, error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Resolver{
		enabled: opts.Enabled,
		store:   opts.Store,
		log:     log.WithField("component", "resolver"),
	}
	if !r.enabled || r.store != nil {
		return r, nil
	}

	names := newNamePool()
	for _, path := range opts.ReferenceFiles {
		entries, err := readReferenceFile(path, names)
		if errors.Is(err, os.ErrNotExist) {
			r.log.WithField("path", path).Debug("reference file not found")
			continue
		}
		if err != nil {
			return nil, err
		}
		r.tables = append(r.tables, entries)
	}
	r.log.WithFields(logrus.Fields{"files": len(r.tables), "plugins": len(names)}).Debug("reference files loaded")
	return r, nil
}

// Enabled reports whether lookups are performed.
func (r *Resolver) Enabled() bool {
	return r != nil && r.enabled
}

// Resolve returns the description of formID in plugin. A miss, a disabled
// resolver and a failed store query all return false.
func (r *Resolver) Resolve(ctx context.Context, formID, plugin string) (string, bool) {
	if !r.Enabled() || formID == "" || plugin == "" {
		return "", false
	}

	if r.store != nil {
		desc, ok, err := r.store.Lookup(ctx, formID, plugin)
		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"formid": formID, "plugin": plugin}).Warn("record lookup failed")
			return "", false
		}
		return desc, ok
	}

	key := formIDKey(formID)
	for _, table := range r.tables {
		for _, e := range table {
			if strings.Contains(e.FormID, key) && strings.EqualFold(e.Plugin, plugin) {
				return e.Description, true
			}
		}
	}
	return "", false
}

// Close releases the compiled store.
func (r *Resolver) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func readReferenceFile(path string, names namePool) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseEntry(scanner.Text()); ok {
			e.Plugin = names.intern(e.Plugin)
			e.FormID = formIDKey(e.FormID)
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, nil
}
