// Loading an archive from disk: header, table of contents, then a
// single sequential pass over the data region that spills every
// TABLE DATA and BLOBS payload into the spill store. Self-identifying
// block headers let that pass find every entry's data without seeking
// to recorded offsets; the position each block started at is then
// checked against every "position set" entry's recorded offset, and
// used to fill in the offset of legacy entries whose state is "not
// set".
package pgdump

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Open loads an archive file in full: the header, the complete table
// of contents, and every data block, the latter spilled to per-entry
// temporary files so the returned Archive never holds row or blob
// bytes in memory.
func Open(path string, cfg Config) (*Archive, error) {
	cfg = cfg.withDefaults()
	if path == "" {
		return nil, ErrPathMissing
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pgdump: %w: %s", ErrPathMissing, path)
		}
		return nil, fmt.Errorf("pgdump: open: %w", err)
	}
	defer f.Close()

	cr := &countingReader{r: f}
	br := bufferedReader(cr)

	header, err := readHeader(br)
	if err != nil {
		if errors.Is(err, ErrBadMagic) {
			return nil, err
		}
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	v := header.version()
	if v.less(MinVersion) || v.greater(MaxVersion) {
		return nil, fmt.Errorf("pgdump: %w: %d.%d.%d", ErrUnsupportedVersion, v[0], v[1], v[2])
	}

	c := codec{intSize: int(header.IntSize), offSize: int(header.OffSize)}

	compression, err := c.readInt(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	createdAt, err := c.readTimestamp(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	dbName, err := c.readString(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	serverVersion, err := c.readString(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	dumpToolVersion, err := c.readString(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}

	count, err := c.readInt(br)
	if err != nil {
		return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}

	entries := make([]Entry, 0, count)
	for i := int64(0); i < count; i++ {
		e, err := readEntry(br, c)
		if err != nil {
			return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
		}
		entries = append(entries, e)
	}

	spill, err := newSpillStore()
	if err != nil {
		return nil, err
	}

	a := &Archive{
		cfg:              cfg,
		header:           header,
		compression:      int(compression),
		createdAt:        createdAt,
		dbName:           dbName,
		serverVersion:    serverVersion,
		dumpToolVersion:  dumpToolVersion,
		entries:          entries,
		byDumpID:         make(map[int]Entry, len(entries)),
		tableDataWriters: make(map[int]*TableDataWriter),
		spill:            spill,
		dedup:            newBlobDedupIndex(cfg.DedupAlg),
	}
	maxID := 3
	for _, e := range entries {
		a.byDumpID[e.DumpID] = e
		if e.DumpID > maxID {
			maxID = e.DumpID
		}
	}
	a.nextDumpID = maxID + 1

	positions, err := spillDataRegion(br, cr, c, spill, compression != 0, cfg.Compressor)
	if err != nil {
		spill.close()
		return nil, err
	}

	// An entry claiming a known offset must actually have its block
	// there: the forward scan records where the block with each dump id
	// really started, so a recorded offset pointing anywhere else means
	// the ToC and data region disagree.
	for _, e := range a.entries {
		if e.DataState != DataStatePosSet {
			continue
		}
		pos, ok := positions[e.DumpID]
		if !ok {
			spill.close()
			return nil, fmt.Errorf("pgdump: %w: no data block for dump id %d at offset %d", ErrCorruptArchive, e.DumpID, e.Offset)
		}
		if pos != e.Offset {
			spill.close()
			return nil, fmt.Errorf("pgdump: %w: dump id %d block at %d, ToC says %d", ErrCorruptArchive, e.DumpID, pos, e.Offset)
		}
	}

	// A legacy archive's PosNotSet entries are promoted in memory to
	// PosSet using the offset this pass just discovered, so a caller
	// inspecting DataState after Open never sees the stale "not set"
	// value for data this reader already located.
	for i, e := range a.entries {
		if e.DataState != DataStatePosNotSet {
			continue
		}
		pos, ok := positions[e.DumpID]
		if !ok {
			continue
		}
		a.entries[i].DataState = DataStatePosSet
		a.entries[i].Offset = pos
		a.byDumpID[e.DumpID] = a.entries[i]
	}
	return a, nil
}

// countingReader tracks the number of bytes read through it, so the
// logical stream position at any point can be recovered as
// pos - bufio.Reader.Buffered() on whatever wraps it.
type countingReader struct {
	r   io.Reader
	pos int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += int64(n)
	return n, err
}

// spillDataRegion reads block after block until EOF, dispatching each
// to the row or blob spiller by its block type byte, and returns the
// logical file offset each dump id's block started at.
func spillDataRegion(br *bufio.Reader, cr *countingReader, c codec, spill *spillStore, compressed bool, compressor Compressor) (map[int]int64, error) {
	positions := make(map[int]int64)
	for {
		blockStart := cr.pos - int64(br.Buffered())

		blockType, err := readByte(br)
		if err != nil {
			if err == io.EOF {
				return positions, nil
			}
			return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
		}

		dumpID, err := c.readInt(br)
		if err != nil {
			return nil, fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
		}
		positions[int(dumpID)] = blockStart

		switch blockType {
		case BlkData:
			if err := spillRowBlock(br, c, spill, int(dumpID), compressed, compressor); err != nil {
				return nil, err
			}
		case BlkBlobs:
			if err := spillBlobBlock(br, c, spill, int(dumpID), compressed, compressor); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("pgdump: %w: unknown block type 0x%02x", ErrCorruptArchive, blockType)
		}
	}
}

// chunkReader presents one block's length-prefixed chunk stream as a
// single continuous io.Reader. The two framings terminate differently:
// an uncompressed stream ends at a chunk length <= 0, a compressed one
// ends after the first chunk shorter than ZlibInSize (and has no
// trailing zero).
type chunkReader struct {
	r          io.Reader
	c          codec
	compressed bool
	remaining  int64
	done       bool
}

func (cr *chunkReader) Read(p []byte) (int, error) {
	for cr.remaining == 0 {
		if cr.done {
			return 0, io.EOF
		}
		n, err := cr.c.readInt(cr.r)
		if err != nil {
			return 0, err
		}
		if cr.compressed && n < ZlibInSize {
			cr.done = true
		}
		if n <= 0 {
			cr.done = true
			return 0, io.EOF
		}
		cr.remaining = n
	}
	if int64(len(p)) > cr.remaining {
		p = p[:cr.remaining]
	}
	n, err := cr.r.Read(p)
	cr.remaining -= int64(n)
	return n, err
}

// copyChunkStream decodes one block's chunk stream into w,
// decompressing when the archive declares itself compressed, and
// always drains the chunk framing to its terminator so the caller's
// stream position lands exactly at the next block.
func copyChunkStream(w io.Writer, r io.Reader, c codec, compressed bool, compressor Compressor) error {
	cr := &chunkReader{r: r, c: c, compressed: compressed}

	var src io.Reader = cr
	if compressed {
		zr, err := compressor.NewReader(cr)
		if err != nil {
			return fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
		}
		defer zr.Close()
		src = zr
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	// The decompressor stops at its stream end, which may be short of
	// the chunk terminator.
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
	}
	return nil
}

// spillRowBlock reassembles a TABLE DATA block's chunk stream into one
// continuous COPY-text byte stream in the spill file.
func spillRowBlock(r io.Reader, c codec, spill *spillStore, dumpID int, compressed bool, compressor Compressor) error {
	w, err := spill.writer(dumpID)
	if err != nil {
		return err
	}
	defer w.Close()

	return copyChunkStream(w, r, c, compressed, compressor)
}

// spillBlobBlock reads a BLOBS block's (oid, chunked payload) entries,
// terminated by an oid of 0, and re-frames each as (oid, length, bytes)
// in the spill file so Blobs can recover per-blob boundaries without
// re-parsing the original chunk framing.
func spillBlobBlock(r io.Reader, c codec, spill *spillStore, dumpID int, compressed bool, compressor Compressor) error {
	w, err := spill.writer(dumpID)
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		oid, err := c.readInt(r)
		if err != nil {
			return fmt.Errorf("pgdump: %w: %v", ErrCorruptArchive, err)
		}
		if oid == 0 {
			return nil
		}

		var payload bytes.Buffer
		if err := copyChunkStream(&payload, r, c, compressed, compressor); err != nil {
			return err
		}

		if err := c.writeInt(w, oid); err != nil {
			return err
		}
		if err := c.writeBytes(w, payload.Bytes()); err != nil {
			return err
		}
	}
}
