// Content digest for blob dedup within a single archive session.
//
// Not part of the pg_dump wire format: a digest is never written to
// the archive file, only used in memory by BlobWriter to detect that
// two appended blobs carry identical bytes, surfaced to callers
// through DedupLookup.
package pgdump

import (
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Digest algorithm constants.
const (
	AlgNone    = 0 // dedup disabled
	AlgXXHash3 = 1 // default, fastest
	AlgFNV1a   = 2 // no external dependencies
	AlgBlake2b = 3 // best distribution
)

// digest returns a hex-encoded content digest of data using alg, or ""
// if alg is AlgNone (dedup disabled).
func digest(data []byte, alg int) string {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.Hash(data))
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		return fmt.Sprintf("%016x", h.Sum64())
	case AlgBlake2b:
		h, _ := blake2b.New256(nil)
		h.Write(data)
		return fmt.Sprintf("%x", h.Sum(nil))
	default:
		return ""
	}
}

// blobDedupIndex maps a content digest to the dump id whose spill file
// already holds that content, scoped to one archive's blob entries.
type blobDedupIndex struct {
	alg   int
	bySum map[string]int // digest -> dump id holding the bytes
}

func newBlobDedupIndex(alg int) *blobDedupIndex {
	return &blobDedupIndex{alg: alg, bySum: make(map[string]int)}
}

// lookup returns the dump id already holding identical bytes, if any.
func (d *blobDedupIndex) lookup(data []byte) (int, bool) {
	if d.alg == AlgNone {
		return 0, false
	}
	sum := digest(data, d.alg)
	id, ok := d.bySum[sum]
	return id, ok
}

// record registers dumpID as holding data's bytes for future lookups.
func (d *blobDedupIndex) record(data []byte, dumpID int) {
	if d.alg == AlgNone {
		return
	}
	d.bySum[digest(data, d.alg)] = dumpID
}
