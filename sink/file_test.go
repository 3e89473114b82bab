package sink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mflodin/asynclog/entry"
)

func TestFileSinkAppendsAndRotates(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSink(FileSinkConfig{
		Dir:         dir,
		SegmentSize: 128, // force rotation well before 100 small entries fill it
	})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		e := entry.Entry{Level: entry.Info, Time: int64(i), Message: "tick"}
		if err := s.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var rotated int
	var sawIndex bool
	for _, e := range entries {
		switch {
		case e.Name() == "segments.json":
			sawIndex = true
		case e.Name() == "current.log":
		default:
			rotated++
		}
	}
	if rotated == 0 {
		t.Fatal("expected at least one rotated segment file")
	}
	if !sawIndex {
		t.Fatal("expected segments.json to be written on rotation")
	}
}

func TestFileSinkRotatesOnDuration(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSink(FileSinkConfig{
		Dir:             dir,
		SegmentSize:     1 << 30, // large enough that size never triggers rotation
		SegmentDuration: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	if err := s.Write(entry.Entry{Level: entry.Debug, Message: "first"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Write(entry.Entry{Level: entry.Debug, Message: "second"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "000001.log")); err != nil {
		t.Fatalf("expected a rotated segment from the duration trigger: %v", err)
	}
}

func TestFileSinkCloseFlushesCurrentSegment(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSink(FileSinkConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := s.Write(entry.Entry{Level: entry.Warn, Message: "flush me"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "current.log"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected Close to flush the buffered write to disk")
	}
}
