package pgdump

import "errors"

// Sentinel errors returned by archive operations. Each names a distinct
// failure mode so callers can branch with errors.Is instead of string
// matching.
var (
	// ErrPathMissing is returned by Open when the path does not exist.
	ErrPathMissing = errors.New("pgdump: path does not exist")

	// ErrBadMagic is returned when the header's 5-byte prefix is not "PGDMP".
	ErrBadMagic = errors.New("pgdump: bad magic header")

	// ErrUnsupportedVersion is returned when the header's version triplet
	// falls outside [MinVersion, MaxVersion].
	ErrUnsupportedVersion = errors.New("pgdump: unsupported archive version")

	// ErrUnsupportedPostgresVersion is returned by New when AppearAs names
	// a Postgres major version with no known dump-format mapping.
	ErrUnsupportedPostgresVersion = errors.New("pgdump: unsupported postgres version")

	// ErrCorruptArchive is returned when a data-block header's dump id
	// does not match the entry it was read for, an unknown block-type
	// byte is encountered, or a declared-length block is truncated.
	ErrCorruptArchive = errors.New("pgdump: corrupt archive")

	// ErrInvalidDescriptor is returned by AddEntry for an unknown desc.
	ErrInvalidDescriptor = errors.New("pgdump: invalid entry descriptor")

	// ErrInvalidDumpID is returned by AddEntry for a negative or
	// already-used dump id (a zero dump id is auto-assigned).
	ErrInvalidDumpID = errors.New("pgdump: invalid dump id")

	// ErrUnknownDependency is returned by AddEntry when a dependency does
	// not resolve to an existing entry.
	ErrUnknownDependency = errors.New("pgdump: unknown dependency")

	// ErrEntityNotFound is returned by TableData when no Data-section
	// entry matches the given namespace and tag.
	ErrEntityNotFound = errors.New("pgdump: entity not found")

	// ErrNoData is returned internally when a spill file does not exist;
	// callers see it surfaced as zero rows/blobs, never as an error.
	ErrNoData = errors.New("pgdump: no data")

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = errors.New("pgdump: archive is closed")
)
