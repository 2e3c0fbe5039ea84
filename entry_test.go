// Entry wire serialization and section-derivation tests.
package pgdump

import (
	"bytes"
	"testing"
)

// TestEntryWireRoundTrip writes an entry's prefix through the
// dependency terminator, then its offset/state pair, and checks
// readEntry reconstructs every field — including with_oids as a
// string and dependencies as decimal strings, not raw ints.
func TestEntryWireRoundTrip(t *testing.T) {
	c := defaultCodec()
	e := Entry{
		DumpID:       42,
		HadDumper:    true,
		TableOID:     "16397",
		OID:          "16400",
		Tag:          "orders",
		Desc:         DescTable,
		Defn:         "CREATE TABLE orders (id int);",
		DropStmt:     "DROP TABLE orders;",
		CopyStmt:     "COPY orders (id) FROM stdin;",
		Namespace:    "public",
		Tablespace:   "",
		Owner:        "postgres",
		WithOIDs:     true,
		Dependencies: []int{1, 2, 3},
	}

	var buf bytes.Buffer
	if err := writeEntryPrefix(&buf, c, e); err != nil {
		t.Fatalf("writeEntryPrefix: %v", err)
	}
	if err := c.writeOffset(&buf, DataStateNone, 0); err != nil {
		t.Fatalf("writeOffset: %v", err)
	}

	got, err := readEntry(&buf, c)
	if err != nil {
		t.Fatalf("readEntry: %v", err)
	}

	if got.DumpID != e.DumpID || got.HadDumper != e.HadDumper {
		t.Errorf("dump id/had-dumper mismatch: %+v", got)
	}
	if got.TableOID != e.TableOID || got.OID != e.OID {
		t.Errorf("oid mismatch: %+v", got)
	}
	if got.Tag != e.Tag || got.Desc != e.Desc {
		t.Errorf("tag/desc mismatch: %+v", got)
	}
	if got.Defn != e.Defn || got.DropStmt != e.DropStmt || got.CopyStmt != e.CopyStmt {
		t.Errorf("statement mismatch: %+v", got)
	}
	if got.Namespace != e.Namespace || got.Owner != e.Owner {
		t.Errorf("namespace/owner mismatch: %+v", got)
	}
	if got.WithOIDs != e.WithOIDs {
		t.Errorf("with_oids = %v, want %v", got.WithOIDs, e.WithOIDs)
	}
	if !equalInts(got.Dependencies, e.Dependencies) {
		t.Errorf("dependencies = %v, want %v", got.Dependencies, e.Dependencies)
	}
}

// TestEntryOffsetIsLastField verifies the byte layout places the
// offset/state pair after the dependency terminator, not between desc
// and defn: writeEntryPrefix alone must not consume the offset bytes.
func TestEntryOffsetIsLastField(t *testing.T) {
	c := defaultCodec()
	e := Entry{DumpID: 1, Desc: DescSchema, Tag: "public"}.withDefaults()

	var prefixOnly bytes.Buffer
	if err := writeEntryPrefix(&prefixOnly, c, e); err != nil {
		t.Fatalf("writeEntryPrefix: %v", err)
	}

	var full bytes.Buffer
	full.Write(prefixOnly.Bytes())
	if err := c.writeOffset(&full, DataStateNone, 0); err != nil {
		t.Fatalf("writeOffset: %v", err)
	}

	if _, err := readEntry(&full, c); err != nil {
		t.Fatalf("readEntry on full buffer: %v", err)
	}

	// Reading from prefix-only bytes must fail or hang past EOF, never
	// silently succeed: there is no offset field left to read.
	if _, err := readEntry(bytes.NewReader(prefixOnly.Bytes()), c); err == nil {
		t.Error("readEntry succeeded without offset bytes present")
	}
}

func TestEntrySection(t *testing.T) {
	cases := []struct {
		desc string
		want Section
	}{
		{DescSchema, SectionPreData},
		{DescTable, SectionPreData},
		{DescTableData, SectionData},
		{DescBlobs, SectionData},
		{DescIndex, SectionPostData},
		{DescTrigger, SectionPostData},
		{DescComment, SectionNone},
		{DescACL, SectionNone},
	}
	for _, tc := range cases {
		e := Entry{Desc: tc.desc}
		if got := e.Section(); got != tc.want {
			t.Errorf("Section(%q) = %v, want %v", tc.desc, got, tc.want)
		}
	}
}

// TestEntryUnknownDescriptorRejected verifies readEntry rejects a desc
// outside the known taxonomy before any later field is interpreted.
func TestEntryUnknownDescriptorRejected(t *testing.T) {
	c := defaultCodec()
	e := Entry{DumpID: 1, Desc: "NOT A REAL DESCRIPTOR"}

	var buf bytes.Buffer
	writeEntryPrefix(&buf, c, e)
	c.writeOffset(&buf, DataStateNone, 0)

	if _, err := readEntry(&buf, c); err == nil {
		t.Error("readEntry accepted an unknown descriptor")
	}
}

func TestEntryWithDefaults(t *testing.T) {
	e := Entry{Dependencies: []int{3, 1, 2, 2}}.withDefaults()
	if e.TableOID != "0" || e.OID != "0" {
		t.Errorf("TableOID/OID = %q/%q, want \"0\"/\"0\"", e.TableOID, e.OID)
	}
	if !equalInts(e.Dependencies, []int{1, 2, 3}) {
		t.Errorf("Dependencies = %v, want sorted+deduped [1 2 3]", e.Dependencies)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
