// Row converter tests: the COPY-text escape grammar and the
// typed-guessing behavior of SmartConverter.
package pgdump

import (
	"net/netip"
	"testing"
	"time"
)

func TestUnescapeControls(t *testing.T) {
	cases := map[string]string{
		`a\tb`:  "a\tb",
		`a\nb`:  "a\nb",
		`a\rb`:  "a\rb",
		`a\bb`:  "a\bb",
		`a\fb`:  "a\fb",
		`a\vb`:  "a\vb",
		`a\\b`:  `a\b`,
		`a\Xb`:  "aXb",
	}
	for in, want := range cases {
		got := string(unescape([]byte(in)))
		if got != want {
			t.Errorf("unescape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnescapeOctal(t *testing.T) {
	// \101 is octal for 'A'.
	got := string(unescape([]byte(`\101BC`)))
	if got != "ABC" {
		t.Errorf("got %q, want %q", got, "ABC")
	}
}

func TestUnescapeHex(t *testing.T) {
	// \x41 is hex for 'A'; hex reads up to 2 digits, greedily.
	got := string(unescape([]byte(`\x41BC`)))
	if got != "ABC" {
		t.Errorf("got %q, want %q", got, "ABC")
	}
}

func TestUnescapeTrailingBackslash(t *testing.T) {
	got := string(unescape([]byte(`abc\`)))
	if got != `abc\` {
		t.Errorf("got %q, want %q", got, `abc\`)
	}
}

// TestSplitFieldsNullDetectedBeforeUnescape checks that a literal `\N`
// field is flagged null without ever reaching the unescape grammar,
// which would otherwise turn it into the two-character string "N".
func TestSplitFieldsNullDetectedBeforeUnescape(t *testing.T) {
	fields := splitFields([]byte("42\t\\N\thello"))
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	if !fields[1].null {
		t.Error("second field not flagged null")
	}
}

// TestDefaultConverterWorkedExample exercises the row
// "42\t\N\thello<LF>world" (a literal embedded newline escaped in the
// COPY stream as \n) and expects (42 as string, nil, "hello\nworld").
func TestDefaultConverterWorkedExample(t *testing.T) {
	row := []byte("42\t\\N\thello\\nworld")
	got, err := DefaultConverter{}.Convert(row)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	fields, ok := got.([]any)
	if !ok || len(fields) != 3 {
		t.Fatalf("got %#v, want 3 fields", got)
	}
	if fields[0] != "42" {
		t.Errorf("field 0 = %#v, want \"42\"", fields[0])
	}
	if fields[1] != nil {
		t.Errorf("field 1 = %#v, want nil", fields[1])
	}
	if fields[2] != "hello\nworld" {
		t.Errorf("field 2 = %#v, want %q", fields[2], "hello\nworld")
	}
}

// TestSmartConverterWorkedExample exercises
// "2019-13-45 25:34:99 00:00\t1\tfoo\t\N": field 0 fails every parse
// (month 13, day 45, hour 25 are all out of range) and stays a
// string; field 1 parses as int64(1); field 2 stays "foo"; field 3 is
// null.
func TestSmartConverterWorkedExample(t *testing.T) {
	row := []byte("2019-13-45 25:34:99 00:00\t1\tfoo\t\\N")
	got, err := SmartConverter{}.Convert(row)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	fields, ok := got.([]any)
	if !ok || len(fields) != 4 {
		t.Fatalf("got %#v, want 4 fields", got)
	}
	if _, ok := fields[0].(string); !ok {
		t.Errorf("field 0 = %#v (%T), want a string", fields[0], fields[0])
	}
	if fields[1] != int64(1) {
		t.Errorf("field 1 = %#v, want int64(1)", fields[1])
	}
	if fields[2] != "foo" {
		t.Errorf("field 2 = %#v, want \"foo\"", fields[2])
	}
	if fields[3] != nil {
		t.Errorf("field 3 = %#v, want nil", fields[3])
	}
}

func TestSmartConverterInt(t *testing.T) {
	if got := convertColumn("-17"); got != int64(-17) {
		t.Errorf("got %#v, want int64(-17)", got)
	}
}

func TestSmartConverterDecimal(t *testing.T) {
	got := convertColumn("3.140")
	d, ok := got.(Decimal)
	if !ok {
		t.Fatalf("got %#v (%T), want Decimal", got, got)
	}
	if string(d) != "3.140" {
		t.Errorf("got %q, want exact literal %q (not rounded through float64)", d, "3.140")
	}
}

func TestSmartConverterIPAddr(t *testing.T) {
	got := convertColumn("192.168.1.1")
	addr, ok := got.(netip.Addr)
	if !ok {
		t.Fatalf("got %#v (%T), want netip.Addr", got, got)
	}
	if addr.String() != "192.168.1.1" {
		t.Errorf("got %v", addr)
	}
}

func TestSmartConverterCIDR(t *testing.T) {
	got := convertColumn("10.0.0.0/24")
	if _, ok := got.(netip.Prefix); !ok {
		t.Fatalf("got %#v (%T), want netip.Prefix", got, got)
	}
}

func TestSmartConverterUUID(t *testing.T) {
	got := convertColumn("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
	u, ok := got.(UUID)
	if !ok {
		t.Fatalf("got %#v (%T), want UUID", got, got)
	}
	if u[0] != 0xa0 || u[15] != 0x11 {
		t.Errorf("got %x", u)
	}
}

func TestSmartConverterTimestamp(t *testing.T) {
	got := convertColumn("2024-03-05 13:45:09")
	ts, ok := got.(time.Time)
	if !ok {
		t.Fatalf("got %#v (%T), want time.Time", got, got)
	}
	if ts.Year() != 2024 || ts.Month() != time.March || ts.Day() != 5 {
		t.Errorf("got %v", ts)
	}
}

func TestSmartConverterFallsBackToString(t *testing.T) {
	got := convertColumn("not-a-recognizable-value !!")
	if s, ok := got.(string); !ok || s != "not-a-recognizable-value !!" {
		t.Errorf("got %#v, want unchanged string", got)
	}
}
