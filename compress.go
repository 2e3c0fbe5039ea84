// Pluggable decompression for BLK_DATA payloads.
//
// The writer in this package always emits uncompressed data blocks,
// but a loaded archive may have been produced by pg_dump with
// compression enabled, so the reader needs a streaming decompressor.
// Compressor is allocated once at construction rather than per entry.
package pgdump

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compressor decompresses a stream of concatenated zlib-compressed
// bytes. The archive's reader is responsible for re-assembling the
// wire format's (length, chunk) framing into a single raw byte stream
// before handing it to NewReader; Compressor only knows about the
// compressed bytes themselves.
type Compressor interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// zlibCompressor is the default Compressor, backed by
// klauspost/compress/zlib, a drop-in faster replacement for the
// standard library's zlib.
type zlibCompressor struct{}

// DefaultCompressor is used by Open/New when Config.Compressor is nil.
var DefaultCompressor Compressor = zlibCompressor{}

func (zlibCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("pgdump: zlib: %w", err)
	}
	return zr, nil
}
