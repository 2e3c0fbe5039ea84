// Package pgdump reads and writes PostgreSQL pg_dump archives in the
// "custom" binary format (the -Fc format produced by pg_dump).
//
// It exposes the archive's table of contents as structured Entry
// values, streams per-table row data and large-object payloads through
// a disk-backed spill store, allows programmatic construction of new
// archives, and writes them back in a form pg_restore accepts.
//
// The package does not execute SQL, connect to PostgreSQL, or validate
// DDL syntax. The "directory" and "tar" archive layouts are not
// implemented; only the single-file custom format is.
package pgdump

// Version is the package's own version string. New records it in the
// dump tool banner ("pgdump " + Version) of the archive preamble; it is
// separate from the format version triplet carried in Header.
const Version = "1.0.0"
