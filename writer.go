// Saving an archive to disk: a two-pass write with a ToC back-patch.
// The first pass writes the header and every entry with a placeholder
// offset/state, then appends the data region, noting where each
// data-bearing block actually landed. The second pass seeks back to
// each entry's placeholder and overwrites it in place with the real
// offset/state — the placeholder-header-then-rewrite technique this
// package uses whenever a value isn't known until everything after it
// has already been written.
package pgdump

import (
	"fmt"
	"io"
	"os"
)

// offsetWriter wraps a sequential writer and tracks the absolute
// byte position written so far, so the caller can remember where a
// placeholder field needs to be patched later without an extra syscall
// per write.
type offsetWriter struct {
	w   io.Writer
	pos int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.pos += int64(n)
	return n, err
}

// patchSlot remembers where one entry's offset/state field landed in
// the file, for the second pass to overwrite.
type patchSlot struct {
	dumpID int
	pos    int64
}

// Save writes the archive to path: header, table of contents (in
// dependency order, see writeOrder), then the data region, then a
// back-patch of every data-bearing entry's recorded offset.
func (a *Archive) Save(path string) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return ErrClosed
	}
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	header := a.header
	spill := a.spill
	dbName := a.dbName
	createdAt := a.createdAt
	serverVersion := a.serverVersion
	dumpToolVersion := a.dumpToolVersion
	a.mu.RUnlock()

	ordered, err := writeOrder(entries)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	defer f.Close()

	c := codec{intSize: int(header.IntSize), offSize: int(header.OffSize)}
	ow := &offsetWriter{w: f}

	if err := writeHeader(ow, header); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeInt(ow, 0); err != nil { // compression: this writer never compresses
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeTimestamp(ow, createdAt); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeString(ow, dbName); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeString(ow, serverVersion); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeString(ow, dumpToolVersion); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}
	if err := c.writeInt(ow, int64(len(ordered))); err != nil {
		return fmt.Errorf("pgdump: save: %w", err)
	}

	patches := make([]patchSlot, 0, len(ordered))
	for _, e := range ordered {
		if err := writeEntryPrefix(ow, c, e); err != nil {
			return fmt.Errorf("pgdump: save: %w", err)
		}

		slotPos := ow.pos
		state := DataStateNone
		if e.hasData() {
			state = DataStatePosNotSet
		}
		if err := c.writeOffset(ow, state, 0); err != nil {
			return fmt.Errorf("pgdump: save: %w", err)
		}
		if e.hasData() {
			patches = append(patches, patchSlot{dumpID: e.DumpID, pos: slotPos})
		}
	}

	dataPos := make(map[int]int64, len(patches))
	wroteData := make(map[int]bool, len(patches))
	for _, e := range ordered {
		if !e.hasData() {
			continue
		}
		dataPos[e.DumpID] = ow.pos
		wrote, err := writeDataBlock(ow, c, spill, e)
		if err != nil {
			return fmt.Errorf("pgdump: save: %w", err)
		}
		wroteData[e.DumpID] = wrote
	}

	for _, p := range patches {
		state, offset := DataStateNone, int64(0)
		if wroteData[p.dumpID] {
			state, offset = DataStatePosSet, dataPos[p.dumpID]
		}
		if _, err := f.Seek(p.pos, io.SeekStart); err != nil {
			return fmt.Errorf("pgdump: save: %w", err)
		}
		if err := c.writeOffset(f, state, offset); err != nil {
			return fmt.Errorf("pgdump: save: %w", err)
		}
	}

	// Entries now enumerate in write order carrying the offsets the file
	// actually holds, so the in-memory view matches what a fresh Open of
	// path would report.
	for i := range ordered {
		if !ordered[i].hasData() {
			continue
		}
		if wroteData[ordered[i].DumpID] {
			ordered[i].DataState = DataStatePosSet
			ordered[i].Offset = dataPos[ordered[i].DumpID]
		} else {
			ordered[i].DataState = DataStateNone
			ordered[i].Offset = 0
		}
	}
	a.mu.Lock()
	if !a.closed {
		a.entries = ordered
		for _, e := range ordered {
			a.byDumpID[e.DumpID] = e
		}
	}
	a.mu.Unlock()
	return nil
}

// writeDataBlock writes one entry's data region: a block-type byte,
// its dump id, and the payload read back from the spill store. It
// reports whether the block ended up carrying a nonzero payload, which
// the caller uses to decide between DataStatePosSet and DataStateNone.
func writeDataBlock(w io.Writer, c codec, spill *spillStore, e Entry) (bool, error) {
	blockType := BlkData
	if e.Desc == DescBlobs {
		blockType = BlkBlobs
	}
	if err := writeByte(w, blockType); err != nil {
		return false, err
	}
	if err := c.writeInt(w, int64(e.DumpID)); err != nil {
		return false, err
	}

	if !spill.exists(e.DumpID) {
		return false, c.writeInt(w, 0)
	}

	r, err := spill.reader(e.DumpID)
	if err != nil {
		return false, err
	}
	defer r.Close()

	if e.Desc == DescBlobs {
		return writeBlobBlockBody(w, c, r)
	}
	return writeChunkedBody(w, c, r)
}

// writeChunkedBody copies r into w as a sequence of up-to-ZlibInSize
// length-prefixed chunks, terminated by a zero-length chunk, reporting
// whether any bytes were copied.
func writeChunkedBody(w io.Writer, c codec, r io.Reader) (bool, error) {
	buf := make([]byte, ZlibInSize)
	wrote := false
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			wrote = true
			if werr := c.writeInt(w, int64(n)); werr != nil {
				return wrote, werr
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return wrote, werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return wrote, c.writeInt(w, 0)
		}
		if err != nil {
			return wrote, err
		}
	}
}

// writeBlobBlockBody re-frames the spill store's (oid, length, bytes)
// records back into the wire's (oid, chunked payload) shape, terminated
// by an oid of 0, reporting whether any blob was written.
func writeBlobBlockBody(w io.Writer, c codec, r io.Reader) (bool, error) {
	wrote := false
	for {
		oid, err := c.readInt(r)
		if err != nil {
			if err == io.EOF {
				return wrote, c.writeInt(w, 0)
			}
			return wrote, err
		}
		payload, err := c.readBytes(r)
		if err != nil {
			return wrote, err
		}
		if err := c.writeInt(w, oid); err != nil {
			return wrote, err
		}
		if _, err := writeChunkedBody(w, c, &sliceReader{b: payload}); err != nil {
			return wrote, err
		}
		wrote = true
	}
}

// sliceReader adapts an in-memory byte slice to io.Reader for reuse of
// writeChunkedBody on a single blob's already-read payload.
type sliceReader struct {
	b   []byte
	pos int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
