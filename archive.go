// Archive is the top-level handle: the in-memory table of contents
// plus whatever spilled row/blob data backs it, and the operations to
// build one from scratch, load one from disk, or save one back out.
package pgdump

import (
	"fmt"
	"sync"
	"time"

	goccyjson "github.com/goccy/go-json"
)

// Config controls how an Archive is built or loaded. The zero value is
// usable: New/Open fill in every unset field with its default.
type Config struct {
	// DBName is the database name recorded in the preamble that follows
	// the fixed archive header. Defaults to "" (unnamed).
	DBName string
	// Encoding is the client_encoding bootstrap statement's value.
	// Defaults to "UTF8".
	Encoding string
	// AppearAs selects which PostgreSQL server version this archive
	// claims to have been produced by. Defaults to defaultAppearAs.
	AppearAs string
	// Compressor decompresses BLK_DATA payloads on read. Defaults to
	// DefaultCompressor.
	Compressor Compressor
	// Converter turns COPY-text rows into caller values on read.
	// Defaults to DefaultConverter{}.
	Converter RowConverter
	// DedupAlg selects the content-digest algorithm BlobWriter uses to
	// detect duplicate blob payloads. AlgNone (the default) disables
	// dedup entirely.
	DedupAlg int
}

func (c Config) withDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = "UTF8"
	}
	if c.AppearAs == "" {
		c.AppearAs = defaultAppearAs
	}
	if c.Compressor == nil {
		c.Compressor = DefaultCompressor
	}
	if c.Converter == nil {
		c.Converter = DefaultConverter{}
	}
	return c
}

// Archive is the full in-memory representation of a pg_dump custom
// format file: its header, its table of contents, and a handle onto
// the spilled data backing each data-bearing entry.
type Archive struct {
	mu sync.RWMutex

	cfg    Config
	header Header

	// Preamble fields, written immediately after the fixed header and
	// preserved verbatim across a load/save round-trip, except
	// compression: Save always writes 0 there.
	compression     int
	createdAt       time.Time
	dbName          string
	serverVersion   string
	dumpToolVersion string

	entries    []Entry
	byDumpID   map[int]Entry
	nextDumpID int

	// tableDataWriters caches the row-append handle for each TABLE
	// entry's dump id, so repeat NewTableDataWriter calls for the same
	// table accumulate into one spill file instead of truncating it.
	tableDataWriters map[int]*TableDataWriter

	spill  *spillStore
	dedup  *blobDedupIndex
	closed bool
}

// New creates an empty archive with the three bootstrap entries
// (ENCODING, STDSTRINGS, SEARCHPATH) that every valid dump carries.
func New(cfg Config) (*Archive, error) {
	cfg = cfg.withDefaults()

	v, ok := appearAsTable[cfg.AppearAs]
	if !ok {
		return nil, fmt.Errorf("pgdump: %w: %q", ErrUnsupportedPostgresVersion, cfg.AppearAs)
	}

	spill, err := newSpillStore()
	if err != nil {
		return nil, err
	}

	a := &Archive{
		cfg: cfg,
		header: Header{
			VMaj:    v[0],
			VMin:    v[1],
			VRev:    v[2],
			IntSize: DefaultIntSize,
			OffSize: DefaultOffsetSize,
			Format:  FormatCustom,
		},
		compression:      0,
		createdAt:        time.Now(),
		dbName:           cfg.DBName,
		serverVersion:    "PostgreSQL " + cfg.AppearAs,
		dumpToolVersion:  "pgdump " + Version,
		byDumpID:         make(map[int]Entry),
		nextDumpID:       4,
		tableDataWriters: make(map[int]*TableDataWriter),
		spill:            spill,
		dedup:            newBlobDedupIndex(cfg.DedupAlg),
	}

	bootstrap := []Entry{
		{DumpID: DumpIDEncoding, Desc: DescEncoding, Tag: "ENCODING",
			Defn: fmt.Sprintf("SET client_encoding = '%s';", cfg.Encoding)},
		{DumpID: DumpIDStdString, Desc: DescStdStrings, Tag: "STDSTRINGS",
			Defn: "SET standard_conforming_strings = 'on';"},
		{DumpID: DumpIDSearch, Desc: DescSearchPath, Tag: "SEARCHPATH",
			Defn: "SELECT pg_catalog.set_config('search_path', '', false);"},
	}
	for _, e := range bootstrap {
		e = e.withDefaults()
		a.entries = append(a.entries, e)
		a.byDumpID[e.DumpID] = e
	}
	return a, nil
}

// AddEntry validates e and appends it to the table of contents. A zero
// DumpID is auto-assigned the next free id (max existing + 1); an
// explicit DumpID must be positive and not already in use, or AddEntry
// returns ErrInvalidDumpID. It returns the entry's dump id.
func (a *Archive) AddEntry(e Entry) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	if !isKnownDescriptor(e.Desc) {
		return 0, fmt.Errorf("pgdump: %w: %q", ErrInvalidDescriptor, e.Desc)
	}
	for _, dep := range e.Dependencies {
		if _, ok := a.byDumpID[dep]; !ok {
			return 0, fmt.Errorf("pgdump: %w: dump id %d", ErrUnknownDependency, dep)
		}
	}

	switch {
	case e.DumpID == 0:
		e.DumpID = a.nextDumpID
	case e.DumpID < 0:
		return 0, fmt.Errorf("pgdump: %w: %d", ErrInvalidDumpID, e.DumpID)
	default:
		if _, used := a.byDumpID[e.DumpID]; used {
			return 0, fmt.Errorf("pgdump: %w: %d already in use", ErrInvalidDumpID, e.DumpID)
		}
	}

	e = e.withDefaults()

	a.entries = append(a.entries, e)
	a.byDumpID[e.DumpID] = e
	if e.DumpID >= a.nextDumpID {
		a.nextDumpID = e.DumpID + 1
	}
	return e.DumpID, nil
}

// GetEntryByDumpID returns the entry with the given dump id.
func (a *Archive) GetEntryByDumpID(dumpID int) (Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.byDumpID[dumpID]
	if !ok {
		return Entry{}, fmt.Errorf("pgdump: %w: dump id %d", ErrEntityNotFound, dumpID)
	}
	return e, nil
}

// LookupEntry returns the first entry whose Desc, Namespace, and Tag
// all match, the way callers locate "the TABLE DATA entry for
// public.orders" without confusing it for sales.orders.
func (a *Archive) LookupEntry(desc, namespace, tag string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, e := range a.entries {
		if e.Desc == desc && e.Namespace == namespace && e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a snapshot of every entry in the table of contents:
// in file order for an archive loaded by Open, in the order they were
// added for a new archive, and in write order (see writeOrder) once
// Save has completed.
func (a *Archive) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// DumpTOC renders the table of contents as indented JSON, for
// diagnostics and test fixtures. It is not part of the archive wire
// format.
func (a *Archive) DumpTOC() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, err := goccyjson.MarshalIndent(a.entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("pgdump: dump toc: %w", err)
	}
	return string(b), nil
}

// Close releases the archive's spill directory. An archive must not be
// used after Close.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.spill != nil {
		return a.spill.close()
	}
	return nil
}

// codec returns the variable-width int/offset codec matching this
// archive's header.
func (a *Archive) codec() codec {
	return codec{intSize: int(a.header.IntSize), offSize: int(a.header.OffSize)}
}

// DedupLookup reports the dump id of a previously appended BLOBS entry
// already holding content identical to data, when Config.DedupAlg is
// not AlgNone. Callers can use this to skip re-reading a blob's source
// bytes entirely when they already know the archive holds a copy.
func (a *Archive) DedupLookup(data []byte) (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dedup.lookup(data)
}

// markDataPending records that dumpID's entry has started receiving
// appended data: NoData becomes PosNotSet, the state Save resolves to
// PosSet once the data block's final position is known.
func (a *Archive) markDataPending(dumpID int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.byDumpID[dumpID]
	if !ok || e.DataState != DataStateNone {
		return
	}
	e.DataState = DataStatePosNotSet
	a.byDumpID[dumpID] = e
	for i := range a.entries {
		if a.entries[i].DumpID == dumpID {
			a.entries[i] = e
			break
		}
	}
}

func (a *Archive) entryFor(dumpID int, wantDesc string) (Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return Entry{}, ErrClosed
	}
	e, ok := a.byDumpID[dumpID]
	if !ok {
		return Entry{}, fmt.Errorf("pgdump: %w: dump id %d", ErrEntityNotFound, dumpID)
	}
	if e.Desc != wantDesc {
		return Entry{}, fmt.Errorf("pgdump: %w: dump id %d is %s, not %s", ErrInvalidDescriptor, dumpID, e.Desc, wantDesc)
	}
	return e, nil
}
