// BLOBS access: an append-only writer keyed by large-object OID, and a
// lazy iterator over the spilled (oid, bytes) pairs, with optional
// content-digest dedup tracking.
package pgdump

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// Blob is one large object's OID and its full byte content.
type Blob struct {
	OID  int
	Data []byte
}

// BlobWriter appends large objects to one BLOBS entry's spill file.
// The spill file is only opened on the first Append.
type BlobWriter struct {
	a      *Archive
	dumpID int
	c      codec
	w      io.WriteCloser
}

// NewBlobWriter opens an append handle for the BLOBS entry identified
// by dumpID.
func (a *Archive) NewBlobWriter(dumpID int) (*BlobWriter, error) {
	if _, err := a.entryFor(dumpID, DescBlobs); err != nil {
		return nil, err
	}
	return &BlobWriter{a: a, dumpID: dumpID, c: a.codec()}, nil
}

// Append writes one large object's full content under oid, which must
// be positive (0 terminates the blob list on the wire). If dedup is
// enabled and identical content has already been recorded under
// another dump id in this archive, that dump id becomes the canonical
// owner for future DedupLookup calls; the bytes are still written here
// so every BLOBS entry remains independently readable.
func (b *BlobWriter) Append(oid int, data []byte) error {
	if oid <= 0 {
		return fmt.Errorf("pgdump: blobs: oid must be positive, got %d", oid)
	}
	if b.w == nil {
		w, err := b.a.spill.writer(b.dumpID)
		if err != nil {
			return err
		}
		b.w = w
		b.a.markDataPending(b.dumpID)
	}
	if err := b.c.writeInt(b.w, int64(oid)); err != nil {
		return fmt.Errorf("pgdump: blobs: %w", err)
	}
	if err := b.c.writeBytes(b.w, data); err != nil {
		return fmt.Errorf("pgdump: blobs: %w", err)
	}

	b.a.mu.Lock()
	if _, ok := b.a.dedup.lookup(data); !ok {
		b.a.dedup.record(data, b.dumpID)
	}
	b.a.mu.Unlock()
	return nil
}

// Close flushes and closes the spill file. Closing a writer nothing
// was appended to is a no-op.
func (b *BlobWriter) Close() error {
	if b.w == nil {
		return nil
	}
	return b.w.Close()
}

// Blobs returns a lazy iterator over every large object stored in the
// archive, across all BLOBS entries in entry order. An archive with no
// BLOBS entries, or BLOBS entries with no spilled data, yields zero
// blobs rather than an error.
func (a *Archive) Blobs() iter.Seq2[Blob, error] {
	return func(yield func(Blob, error) bool) {
		a.mu.RLock()
		if a.closed {
			a.mu.RUnlock()
			yield(Blob{}, ErrClosed)
			return
		}
		entries := make([]Entry, len(a.entries))
		copy(entries, a.entries)
		spill := a.spill
		c := a.codec()
		a.mu.RUnlock()

		for _, e := range entries {
			if e.Desc != DescBlobs {
				continue
			}
			if !streamBlobEntry(yield, spill, c, e.DumpID) {
				return
			}
		}
	}
}

// streamBlobEntry streams one BLOBS entry's large objects through
// yield, reporting whether the caller asked to keep going.
func streamBlobEntry(yield func(Blob, error) bool, spill *spillStore, c codec, dumpID int) bool {
	r, err := spill.reader(dumpID)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return true
		}
		return yield(Blob{}, err)
	}
	defer r.Close()

	for {
		oid, err := c.readInt(r)
		if err != nil {
			if err == io.EOF {
				return true
			}
			return yield(Blob{}, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err))
		}
		data, err := c.readBytes(r)
		if err != nil {
			return yield(Blob{}, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err))
		}
		if !yield(Blob{OID: int(oid), Data: data}, nil) {
			return false
		}
	}
}
