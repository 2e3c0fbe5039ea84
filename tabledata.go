// TABLE DATA access: an append-only writer for populating a table's
// rows during authoring, and a lazy iterator for reading them back,
// mirroring the generalized row-streaming shape of a line-oriented
// on-disk store's append/read split.
package pgdump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// TableDataWriter appends COPY-text rows to one table's TABLE DATA
// entry spill file. Rows are newline-delimited; callers pass each
// row's raw bytes without a trailing newline. The spill file is only
// opened on the first Append, so acquiring a writer and never feeding
// it leaves the entry with no data at all.
type TableDataWriter struct {
	a      *Archive
	dumpID int
	w      io.WriteCloser
}

// NewTableDataWriter is a scoped acquisition of the row-append handle
// for tableEntry's data. On first call for a given table it appends a
// new TABLE DATA entry deriving copy_stmt from tableEntry and columns
// and depending on tableEntry's dump id. On later calls for the same
// table it returns the same handle, so appends accumulate rather than
// truncating what came before.
func (a *Archive) NewTableDataWriter(tableEntry Entry, columns []string) (*TableDataWriter, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	if w, ok := a.tableDataWriters[tableEntry.DumpID]; ok {
		a.mu.Unlock()
		return w, nil
	}
	a.mu.Unlock()

	dataID, err := a.AddEntry(Entry{
		Desc:         DescTableData,
		Tag:          tableEntry.Tag,
		Namespace:    tableEntry.Namespace,
		Owner:        tableEntry.Owner,
		CopyStmt:     copyStmtFor(tableEntry, columns),
		Dependencies: []int{tableEntry.DumpID},
	})
	if err != nil {
		return nil, err
	}

	tw := &TableDataWriter{a: a, dumpID: dataID}

	a.mu.Lock()
	a.tableDataWriters[tableEntry.DumpID] = tw
	a.mu.Unlock()
	return tw, nil
}

// copyStmtFor renders the COPY statement a TABLE DATA entry carries,
// the way pg_dump qualifies it with the table's namespace.
func copyStmtFor(tableEntry Entry, columns []string) string {
	qualified := tableEntry.Tag
	if tableEntry.Namespace != "" {
		qualified = tableEntry.Namespace + "." + tableEntry.Tag
	}
	return fmt.Sprintf("COPY %s (%s) FROM stdin;", qualified, strings.Join(columns, ", "))
}

// Append writes one row. row must not contain a newline.
func (t *TableDataWriter) Append(row []byte) error {
	if t.w == nil {
		w, err := t.a.spill.writer(t.dumpID)
		if err != nil {
			return err
		}
		t.w = w
		t.a.markDataPending(t.dumpID)
	}
	if _, err := t.w.Write(row); err != nil {
		return fmt.Errorf("pgdump: table data: %w", err)
	}
	if _, err := t.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("pgdump: table data: %w", err)
	}
	return nil
}

// Close flushes and closes the spill file. It must be called before
// the archive is saved. Closing a writer nothing was appended to is a
// no-op.
func (t *TableDataWriter) Close() error {
	if t.w == nil {
		return nil
	}
	return t.w.Close()
}

// TableData returns a lazy row iterator over the Data-section entry
// matching namespace and tag, converting each row with the archive's
// configured RowConverter. It is restartable on each call and raises
// ErrEntityNotFound when no such entry exists; an existing entry with
// no spilled data yields zero rows rather than an error.
func (a *Archive) TableData(namespace, tag string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		e, ok := a.LookupEntry(DescTableData, namespace, tag)
		if !ok {
			yield(nil, fmt.Errorf("pgdump: %w: %s.%s", ErrEntityNotFound, namespace, tag))
			return
		}

		a.mu.RLock()
		if a.closed {
			a.mu.RUnlock()
			yield(nil, ErrClosed)
			return
		}
		spill := a.spill
		conv := a.cfg.Converter
		a.mu.RUnlock()

		r, err := spill.reader(e.DumpID)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				return
			}
			yield(nil, err)
			return
		}
		defer r.Close()

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for sc.Scan() {
			val, cerr := conv.Convert(sc.Bytes())
			if !yield(val, cerr) {
				return
			}
			if cerr != nil {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err))
		}
	}
}
