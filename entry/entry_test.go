package entry

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := Entry{
		Level:   Warn,
		Time:    1234567890,
		Message: "disk nearly full",
		Fields:  map[string]string{"path": "/var/log", "pct": "92"},
	}

	encoded := Encode(e)
	got, n, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(encoded), n)
	}
	if got.Level != e.Level || got.Time != e.Time || got.Message != e.Message {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
	for k, v := range e.Fields {
		if got.Fields[k] != v {
			t.Fatalf("field %q: got %q, want %q", k, got.Fields[k], v)
		}
	}
}

func TestEncodeDecodeNoFields(t *testing.T) {
	e := Entry{Level: Info, Time: 1, Message: "hello"}
	got, _, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Fields) != 0 {
		t.Fatalf("expected no fields, got %v", got.Fields)
	}
}

func TestDecodeRejectsCorruptedPayload(t *testing.T) {
	e := Entry{Level: Error, Time: 1, Message: "boom"}
	encoded := Encode(e)
	encoded[len(encoded)-1] ^= 0xff // flip every bit of the trailing crc's last byte
	if _, _, err := Decode(encoded); err == nil {
		t.Fatal("expected a crc mismatch error")
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{Debug: "DEBUG", Info: "INFO", Warn: "WARN", Error: "ERROR"}
	for lvl, want := range cases {
		if got := lvl.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", lvl, got, want)
		}
	}
}
