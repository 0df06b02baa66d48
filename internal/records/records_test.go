package records

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const curated = `ModA.esp | 001A2B | Rusty Sword (WEAP)
ModA.esp | 001A2C | Rusty Shield (ARMO) | extra
broken line
Fallout4.esm | 00000F | Caps (MISC)
`

func writeReference(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line string
		want Entry
		ok   bool
	}{
		{"ModA.esp | 001A2B | Rusty Sword", Entry{Plugin: "ModA.esp", FormID: "001A2B", Description: "Rusty Sword"}, true},
		{"ModA.esp | 001A2B | Rusty Sword | ignored", Entry{Plugin: "ModA.esp", FormID: "001A2B", Description: "Rusty Sword"}, true},
		{"ModA.esp | 001A2B", Entry{}, false},
		{" | 001A2B | nameless", Entry{}, false},
		{"", Entry{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseEntry(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestResolver_ReferenceFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeReference(t, dir, "main.txt", curated)
	second := writeReference(t, dir, "mods.txt", "ModA.esp | 001A2B | Shadowed\nModB.esp | 000801 | Only Here\n")
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r, err := NewResolver(ResolverOptions{
		Enabled:        true,
		ReferenceFiles: []string{first, filepath.Join(dir, "missing.txt"), second},
		Log:            logger,
	})
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	tests := []struct {
		name           string
		formID, plugin string
		want           string
		ok             bool
	}{
		{"curated file first", "001A2B", "ModA.esp", "Rusty Sword (WEAP)", true},
		{"plugin case-insensitive", "001A2C", "moda.ESP", "Rusty Shield (ARMO)", true},
		{"second file", "000801", "ModB.esp", "Only Here", true},
		{"wrong plugin", "001A2B", "ModB.esp", "", false},
		{"empty id", "", "ModA.esp", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(ctx, tt.formID, tt.plugin)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// the missing file is only logged
	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "reference file not found")
}

func TestNamePool(t *testing.T) {
	p := newNamePool()
	a := p.intern(string([]byte("ModA.esp")))
	b := p.intern(string([]byte("ModA.esp")))
	assert.Equal(t, a, b)
	assert.Same(t, unsafe.StringData(a), unsafe.StringData(b))

	p.intern("ModB.esp")
	assert.Len(t, p, 2)
}

func TestNamePool_Cap(t *testing.T) {
	p := newNamePool()
	for i := 0; i < maxPoolSize; i++ {
		p[strconv.Itoa(i)] = ""
	}
	assert.Equal(t, "ModA.esp", p.intern("ModA.esp"))
	assert.Len(t, p, maxPoolSize)
}

// The compiled store and the reference files must agree on every lookup.
func TestResolver_TiersAgree(t *testing.T) {
	dir := t.TempDir()
	src := writeReference(t, dir, "main.txt", `ModA.esp | 00001A2B | Padded Sword (WEAP)
ModA.esp | 001a2c | Lower Shield (ARMO)
ModA.esp | 001A2C | Upper Shield (ARMO)
ModB.esp | 000801 | Only B
`)
	logger, _ := test.NewNullLogger()

	fromFiles, err := NewResolver(ResolverOptions{Enabled: true, ReferenceFiles: []string{src}, Log: logger})
	require.NoError(t, err)
	defer fromFiles.Close()

	dst := filepath.Join(dir, "records.duckdb")
	_, err = CompileDuckStore(src, dst, logger)
	require.NoError(t, err)
	store, err := OpenStore(dst, "Fallout4")
	require.NoError(t, err)
	fromStore, err := NewResolver(ResolverOptions{Enabled: true, Store: store, Log: logger})
	require.NoError(t, err)
	defer fromStore.Close()

	ctx := context.Background()
	tests := []struct {
		formID, plugin string
		want           string
		ok             bool
	}{
		{"001A2B", "ModA.esp", "Padded Sword (WEAP)", true},
		{"001A2C", "moda.esp", "Lower Shield (ARMO)", true},
		{"001a2c", "ModA.esp", "Lower Shield (ARMO)", true},
		{"0801", "MODB.ESP", "Only B", true},
		{"000801", "ModA.esp", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.formID+"/"+tt.plugin, func(t *testing.T) {
			got, ok := fromFiles.Resolve(ctx, tt.formID, tt.plugin)
			assert.Equal(t, tt.ok, ok, "reference files")
			assert.Equal(t, tt.want, got, "reference files")

			got, ok = fromStore.Resolve(ctx, tt.formID, tt.plugin)
			assert.Equal(t, tt.ok, ok, "compiled store")
			assert.Equal(t, tt.want, got, "compiled store")
		})
	}
}

func TestResolver_Disabled(t *testing.T) {
	dir := t.TempDir()
	path := writeReference(t, dir, "main.txt", curated)

	r, err := NewResolver(ResolverOptions{ReferenceFiles: []string{path}})
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	_, ok := r.Resolve(context.Background(), "001A2B", "ModA.esp")
	assert.False(t, ok)

	var nilResolver *Resolver
	assert.False(t, nilResolver.Enabled())
	assert.NoError(t, nilResolver.Close())
}

func TestOpenStore_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenStore("", "Fallout4")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	_, err = OpenStore(filepath.Join(dir, "records.duckdb"), "Fallout4")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	other := writeReference(t, dir, "records.csv", "x")
	_, err = OpenStore(other, "Fallout4")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
}

func TestCompileDuckStore(t *testing.T) {
	dir := t.TempDir()
	src := writeReference(t, dir, "main.txt", curated)
	dst := filepath.Join(dir, "records.duckdb")
	logger, _ := test.NewNullLogger()

	n, err := CompileDuckStore(src, dst, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// compiling again replaces the store
	n, err = CompileDuckStore(src, dst, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	store, err := OpenStore(dst, "Fallout4")
	require.NoError(t, err)

	r, err := NewResolver(ResolverOptions{Enabled: true, Store: store, Log: logger})
	require.NoError(t, err)
	defer r.Close()

	desc, ok := r.Resolve(context.Background(), "001A2B", "MODA.ESP")
	assert.True(t, ok)
	assert.Equal(t, "Rusty Sword (WEAP)", desc)

	_, ok = r.Resolve(context.Background(), "FFFFFF", "ModA.esp")
	assert.False(t, ok)
}

func TestCompileDuckStore_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := CompileDuckStore(filepath.Join(dir, "missing.txt"), filepath.Join(dir, "records.duckdb"), nil)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fallout4-formids.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "Fallout4" (plugin TEXT, formid TEXT, entry TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "Fallout4" VALUES ('ModA.esp', '001A2B', 'Rusty Sword (WEAP)')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := OpenStore(path, "Fallout4")
	require.NoError(t, err)
	defer store.Close()

	desc, ok, err := store.Lookup(context.Background(), "001A2B", "moda.esp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Rusty Sword (WEAP)", desc)

	_, ok, err = store.Lookup(context.Background(), "000000", "ModA.esp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = OpenSQLiteStore(path, `bad"name`)
	assert.Error(t, err)
}
