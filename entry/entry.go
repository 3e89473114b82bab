// Package entry defines the wire layout of one producer-side log frame:
// the dispatch pointer plus the payload the consumer decodes after
// reading it. The body is a type/timestamp/length-prefixed-payload/CRC32
// layout sitting behind a ring.DispatchPointer instead of a leading
// type tag.
package entry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/mflodin/asynclog/ring"
)

// Level is the severity of a log entry.
type Level uint8

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

const (
	// Dispatch identifies a frame whose body is an encoded Entry.
	Dispatch ring.DispatchPointer = 1
	// FlushDispatch identifies a control frame with no body: a request
	// that the consumer flush its sinks. No completion is signalled.
	FlushDispatch ring.DispatchPointer = 2
)

// Entry is one structured log record.
type Entry struct {
	Level   Level
	Time    int64
	Message string
	Fields  map[string]string
}

// Encode renders e as the bytes that follow the dispatch pointer in an
// input frame: level, time, message, field count, then key/value pairs,
// all length-prefixed, trailed by a CRC32 of everything before it.
func Encode(e Entry) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(e.Level))
	binary.Write(buf, binary.LittleEndian, e.Time)
	writeString(buf, e.Message)
	binary.Write(buf, binary.LittleEndian, uint16(len(e.Fields)))
	for k, v := range e.Fields {
		writeString(buf, k)
		writeString(buf, v)
	}
	sum := crc32.ChecksumIEEE(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

// Decode reads one encoded Entry from the front of b and returns it along
// with the number of bytes consumed (not counting the dispatch pointer,
// which the caller strips before calling Decode).
func Decode(b []byte) (Entry, int, error) {
	r := bytes.NewReader(b)
	var e Entry

	lvl, err := r.ReadByte()
	if err != nil {
		return Entry{}, 0, fmt.Errorf("entry: read level: %w", err)
	}
	e.Level = Level(lvl)

	if err := binary.Read(r, binary.LittleEndian, &e.Time); err != nil {
		return Entry{}, 0, fmt.Errorf("entry: read time: %w", err)
	}

	msg, err := readString(r)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("entry: read message: %w", err)
	}
	e.Message = msg

	var nfields uint16
	if err := binary.Read(r, binary.LittleEndian, &nfields); err != nil {
		return Entry{}, 0, fmt.Errorf("entry: read field count: %w", err)
	}
	if nfields > 0 {
		e.Fields = make(map[string]string, nfields)
	}
	for i := uint16(0); i < nfields; i++ {
		k, err := readString(r)
		if err != nil {
			return Entry{}, 0, fmt.Errorf("entry: read field key: %w", err)
		}
		v, err := readString(r)
		if err != nil {
			return Entry{}, 0, fmt.Errorf("entry: read field value: %w", err)
		}
		e.Fields[k] = v
	}

	consumed := len(b) - r.Len()

	var crc uint32
	if err := binary.Read(r, binary.LittleEndian, &crc); err != nil {
		return Entry{}, 0, fmt.Errorf("entry: read crc: %w", err)
	}
	computed := crc32.ChecksumIEEE(b[:consumed])
	if computed != crc {
		return Entry{}, 0, fmt.Errorf("entry: crc mismatch: %w", io.ErrUnexpectedEOF)
	}

	return e, consumed + 4, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	s := make([]byte, n)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", err
	}
	return string(s), nil
}

// Format renders e the way a plain-text sink would write it.
func (e Entry) Format() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d %s %s", e.Time, e.Level, e.Message)
	}
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "%d %s %s", e.Time, e.Level, e.Message)
	for k, v := range e.Fields {
		fmt.Fprintf(buf, " %s=%q", k, v)
	}
	return buf.String()
}
