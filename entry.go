// Entry model: a single ToC record for one database object, its
// descriptor taxonomy, and the section-derivation rule.
//
// An Entry is a value type. It is produced either by the reader
// (parsing a file) or by AddEntry (the authoring API); neither path
// ever mutates an Entry after it has been returned.
package pgdump

import (
	"fmt"
	"io"
	"slices"
	"strconv"
)

// depListEOF terminates a dependency list on the wire: a dependency
// dump id is always positive, so -1 cannot be mistaken for one.
const depListEOF = -1

// Entry is a ToC record for one database object (table, index, blob
// group, ...).
type Entry struct {
	DumpID   int
	HadDumper bool
	TableOID string // decimal string, "0" when absent
	OID      string // decimal string, "0" when absent
	Tag      string
	Desc     string
	Defn       string
	DropStmt   string
	CopyStmt   string
	Namespace  string
	Tablespace string
	Owner      string
	WithOIDs   bool // round-tripped verbatim, never interpreted
	Dependencies []int

	DataState DataState
	Offset    int64
}

// Section derives the restore-ordering bucket for this entry from its
// Desc. It is a pure function, never independently stored.
func (e Entry) Section() Section {
	s, ok := sectionFor(e.Desc)
	if !ok {
		return SectionNone
	}
	return s
}

// withDefaults fills zero-valued optional fields the way the wire
// format expects them: "0" for absent OIDs, an empty (not nil) sorted
// dependency set.
func (e Entry) withDefaults() Entry {
	if e.TableOID == "" {
		e.TableOID = "0"
	}
	if e.OID == "" {
		e.OID = "0"
	}
	if e.Dependencies == nil {
		e.Dependencies = []int{}
	} else {
		deps := slices.Clone(e.Dependencies)
		slices.Sort(deps)
		e.Dependencies = slices.Compact(deps)
	}
	if e.DataState == 0 {
		e.DataState = DataStateNone
	}
	return e
}

// hasData reports whether this entry's desc carries a data block
// (TABLE DATA or BLOBS).
func (e Entry) hasData() bool {
	return e.Desc == DescTableData || e.Desc == DescBlobs
}

// isKnownDescriptor reports whether desc is in the descriptor
// taxonomy AddEntry accepts.
func isKnownDescriptor(desc string) bool {
	_, ok := sectionMapping[desc]
	return ok
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func boolToWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// writeEntryPrefix writes every entry field up to and including the
// dependency list terminator — everything except the trailing
// offset/state pair, which a two-pass writer patches in afterward once
// the data region's layout is known.
func writeEntryPrefix(w io.Writer, c codec, e Entry) error {
	steps := []func() error{
		func() error { return c.writeInt(w, int64(e.DumpID)) },
		func() error { return c.writeInt(w, boolToInt(e.HadDumper)) },
		func() error { return c.writeString(w, e.TableOID) },
		func() error { return c.writeString(w, e.OID) },
		func() error { return c.writeString(w, e.Tag) },
		func() error { return c.writeString(w, e.Desc) },
		func() error { return c.writeInt(w, int64(e.Section())+1) },
		func() error { return c.writeString(w, e.Defn) },
		func() error { return c.writeString(w, e.DropStmt) },
		func() error { return c.writeString(w, e.CopyStmt) },
		func() error { return c.writeString(w, e.Namespace) },
		func() error { return c.writeString(w, e.Tablespace) },
		func() error { return c.writeString(w, e.Owner) },
		func() error { return c.writeString(w, boolToWord(e.WithOIDs)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return writeDepList(w, c, e.Dependencies)
}

// writeDepList writes each dependency as a length-prefixed decimal
// string, terminated by depListEOF in place of a length.
func writeDepList(w io.Writer, c codec, deps []int) error {
	for _, dep := range deps {
		if err := c.writeString(w, strconv.Itoa(dep)); err != nil {
			return err
		}
	}
	return c.writeInt(w, depListEOF)
}

// readDepList is the inverse of writeDepList.
func readDepList(r io.Reader, c codec) ([]int, error) {
	var deps []int
	for {
		n, err := c.readInt(r)
		if err != nil {
			return nil, err
		}
		// Written as depListEOF; some producers end the list with a
		// zero-length string instead, so any non-positive length stops.
		if n <= 0 {
			return deps, nil
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		dep, err := strconv.Atoi(string(buf))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		deps = append(deps, dep)
	}
}

// readEntry is the inverse of writeEntryPrefix followed by a trailing
// offset/state read.
func readEntry(r io.Reader, c codec) (Entry, error) {
	var e Entry

	dumpID, err := c.readInt(r)
	if err != nil {
		return e, err
	}
	e.DumpID = int(dumpID)

	hadDumper, err := c.readInt(r)
	if err != nil {
		return e, err
	}
	e.HadDumper = hadDumper != 0

	if e.TableOID, err = c.readString(r); err != nil {
		return e, err
	}
	if e.OID, err = c.readString(r); err != nil {
		return e, err
	}
	if e.Tag, err = c.readString(r); err != nil {
		return e, err
	}
	if e.Desc, err = c.readString(r); err != nil {
		return e, err
	}
	if !isKnownDescriptor(e.Desc) {
		return e, fmt.Errorf("pgdump: %w: %q", ErrInvalidDescriptor, e.Desc)
	}

	// section-index+1 is written for format completeness but never
	// trusted: Section() always re-derives it from Desc.
	if _, err := c.readInt(r); err != nil {
		return e, err
	}

	if e.Defn, err = c.readString(r); err != nil {
		return e, err
	}
	if e.DropStmt, err = c.readString(r); err != nil {
		return e, err
	}
	if e.CopyStmt, err = c.readString(r); err != nil {
		return e, err
	}
	if e.Namespace, err = c.readString(r); err != nil {
		return e, err
	}
	if e.Tablespace, err = c.readString(r); err != nil {
		return e, err
	}
	if e.Owner, err = c.readString(r); err != nil {
		return e, err
	}

	withOIDs, err := c.readString(r)
	if err != nil {
		return e, err
	}
	e.WithOIDs = withOIDs == "true"

	if e.Dependencies, err = readDepList(r, c); err != nil {
		return e, err
	}

	state, offset, err := c.readOffset(r)
	if err != nil {
		return e, err
	}
	e.DataState, e.Offset = state, offset

	return e, nil
}
