// Byte-level codec primitives: variable-width signed integers,
// length-prefixed byte strings, offsets, timestamps, and the fixed
// archive header. Every primitive here has a read/write pair kept side
// by side so the two directions stay obviously symmetric.
package pgdump

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// codec binds the int/offset widths declared in a given archive's
// header; every higher-level read/write helper is a method on it so
// callers never have to thread intSize/offSize through by hand.
type codec struct {
	intSize int
	offSize int
}

func defaultCodec() codec {
	return codec{intSize: DefaultIntSize, offSize: DefaultOffsetSize}
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// readInt reads a signed integer: one sign byte (0 = positive, nonzero
// = negative) followed by intSize little-endian magnitude bytes. The
// sentinel -1 terminates an entry's dependency list (depListEOF);
// data-block chunk streams and blob lists are terminated by 0 instead.
func (c codec) readInt(r io.Reader) (int64, error) {
	sign, err := readByte(r)
	if err != nil {
		return 0, err
	}
	var value int64
	var shift uint
	for i := 0; i < c.intSize; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		if b != 0 {
			value += int64(b) << shift
		}
		shift += 8
	}
	if sign != 0 {
		return -value, nil
	}
	return value, nil
}

// writeInt writes the inverse of readInt.
func (c codec) writeInt(w io.Writer, value int64) error {
	sign := byte(0)
	if value < 0 {
		sign = 1
		value = -value
	}
	if err := writeByte(w, sign); err != nil {
		return err
	}
	for i := 0; i < c.intSize; i++ {
		if err := writeByte(w, byte(value&0xFF)); err != nil {
			return err
		}
		value >>= 8
	}
	return nil
}

// readBytes reads a length-prefixed byte string: a signed int length,
// then that many raw bytes (empty slice when length <= 0).
func (c codec) readBytes(r io.Reader) ([]byte, error) {
	n, err := c.readInt(r)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeBytes writes the inverse of readBytes. Length is never negative
// on write.
func (c codec) writeBytes(w io.Writer, b []byte) error {
	if err := c.writeInt(w, int64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func (c codec) readString(r io.Reader) (string, error) {
	b, err := c.readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c codec) writeString(w io.Writer, s string) error {
	return c.writeBytes(w, []byte(s))
}

// readOffset reads one data-state byte followed by offSize
// little-endian magnitude bytes, unsigned (no sign byte, unlike int).
func (c codec) readOffset(r io.Reader) (DataState, int64, error) {
	b, err := readByte(r)
	if err != nil {
		return 0, 0, err
	}
	var value int64
	var shift uint
	for i := 0; i < c.offSize; i++ {
		bv, err := readByte(r)
		if err != nil {
			return 0, 0, err
		}
		value |= int64(bv) << shift
		shift += 8
	}
	return DataState(b), value, nil
}

func (c codec) writeOffset(w io.Writer, state DataState, offset int64) error {
	if err := writeByte(w, byte(state)); err != nil {
		return err
	}
	for i := 0; i < c.offSize; i++ {
		if err := writeByte(w, byte(offset&0xFF)); err != nil {
			return err
		}
		offset >>= 8
	}
	return nil
}

// readTimestamp reads seven signed ints (second, minute, hour, day,
// zero-based month, year-1900, DST flag) and interprets them in local
// time.
func (c codec) readTimestamp(r io.Reader) (time.Time, error) {
	vals := make([]int64, 7)
	for i := range vals {
		v, err := c.readInt(r)
		if err != nil {
			return time.Time{}, err
		}
		vals[i] = v
	}
	second, minute, hour, day, month, year := vals[0], vals[1], vals[2], vals[3], vals[4]+1, vals[5]+1900
	return time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.Local), nil
}

// writeTimestamp always writes a DST flag of 0: Go's time package
// exposes a zone offset but not a portable "is this DST" predicate, and
// nothing on the read side ever interprets the flag.
func (c codec) writeTimestamp(w io.Writer, t time.Time) error {
	t = t.Local()
	vals := []int64{
		int64(t.Second()), int64(t.Minute()), int64(t.Hour()), int64(t.Day()),
		int64(t.Month()) - 1, int64(t.Year()) - 1900, 0,
	}
	for _, v := range vals {
		if err := c.writeInt(w, v); err != nil {
			return err
		}
	}
	return nil
}

// Header is the fixed 11-byte archive header.
type Header struct {
	VMaj, VMin, VRev byte
	IntSize          byte
	OffSize          byte
	Format           byte
}

func (h Header) version() version {
	return version{h.VMaj, h.VMin, h.VRev}
}

func (h Header) String() string {
	return fmt.Sprintf("v%d.%d.%d int=%d off=%d format=%s",
		h.VMaj, h.VMin, h.VRev, h.IntSize, h.OffSize, formatName(h.Format))
}

func formatName(f byte) string {
	if int(f) >= len(formatNames) {
		return "Unknown"
	}
	return formatNames[f]
}

// readHeader reads the 5-byte magic and six 1-byte fields in order:
// vmaj, vmin, vrev, intsize, offsize, format.
func readHeader(r io.Reader) (Header, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Header{}, err
	}
	if string(magic) != Magic {
		return Header{}, ErrBadMagic
	}
	fields := make([]byte, 6)
	if _, err := io.ReadFull(r, fields); err != nil {
		return Header{}, err
	}
	return Header{
		VMaj: fields[0], VMin: fields[1], VRev: fields[2],
		IntSize: fields[3], OffSize: fields[4], Format: fields[5],
	}, nil
}

func writeHeader(w io.Writer, h Header) error {
	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	fields := []byte{h.VMaj, h.VMin, h.VRev, h.IntSize, h.OffSize, h.Format}
	_, err := w.Write(fields)
	return err
}

// bufferedReader wraps a file handle for sequential header/ToC
// parsing; callers that need random access (data-block seeks) operate
// on the underlying *os.File directly instead.
func bufferedReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 64*1024)
}
