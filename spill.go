// Spill store: one gzip-compressed temporary file per data-bearing
// dump id, holding table rows or blob payloads between load and save
// so an archive never needs all its row data in memory at once. The
// scoped temp directory is created on construction and removed on
// teardown.
package pgdump

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// spillStore owns a private temp directory. File naming (<dump_id>.gz)
// is an implementation detail, not part of the external contract.
type spillStore struct {
	dir string
}

func newSpillStore() (*spillStore, error) {
	dir, err := os.MkdirTemp("", "pgdump-spill-*")
	if err != nil {
		return nil, fmt.Errorf("pgdump: spill: %w", err)
	}
	return &spillStore{dir: dir}, nil
}

func (s *spillStore) path(dumpID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.gz", dumpID))
}

// writer opens (creating or truncating) the spill file for dumpID and
// returns a handle whose Close flushes the gzip trailer and closes the
// underlying file.
func (s *spillStore) writer(dumpID int) (io.WriteCloser, error) {
	f, err := os.Create(s.path(dumpID))
	if err != nil {
		return nil, fmt.Errorf("pgdump: spill: %w", err)
	}
	gz := gzip.NewWriter(f)
	return &spillWriter{gz: gz, f: f}, nil
}

type spillWriter struct {
	gz *gzip.Writer
	f  *os.File
}

func (w *spillWriter) Write(p []byte) (int, error) { return w.gz.Write(p) }

func (w *spillWriter) Close() error {
	if err := w.gz.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// reader opens the spill file for dumpID for sequential read. A
// missing file is not an error at this layer: it is reported via
// ErrNoData, which callers (TableData, Blobs) recover from as "zero
// rows"/"zero blobs".
func (s *spillStore) reader(dumpID int) (io.ReadCloser, error) {
	f, err := os.Open(s.path(dumpID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("pgdump: spill: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pgdump: spill: %w", err)
	}
	return &spillReader{gz: gz, f: f}, nil
}

type spillReader struct {
	gz *gzip.Reader
	f  *os.File
}

func (r *spillReader) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *spillReader) Close() error {
	err := r.gz.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// exists reports whether a spill file has been written for dumpID.
func (s *spillStore) exists(dumpID int) bool {
	_, err := os.Stat(s.path(dumpID))
	return err == nil
}

// close removes the entire spill directory and everything in it.
func (s *spillStore) close() error {
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}
