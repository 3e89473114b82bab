package logfacade

import (
	"sync"
	"testing"
	"time"

	"github.com/mflodin/asynclog/entry"
	"github.com/mflodin/asynclog/sink"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []entry.Entry
	closed  bool
}

func (s *recordingSink) Write(e entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() []entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entry.Entry(nil), s.entries...)
}

func newTestLogger(rec *recordingSink) *Logger {
	return New(Config{
		RingSize:       4096,
		FrameAlignment: 64,
		Sinks:          []sink.Sink{rec},
		PollInterval:   time.Millisecond,
		ReaperInterval: 10 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition never became true")
	}
}

func TestLogAndDrainSingleGoroutine(t *testing.T) {
	rec := &recordingSink{}
	l := newTestLogger(rec)
	defer l.Close()

	if err := l.Info("hello", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Info: %v", err)
	}
	if err := l.Error("boom", nil); err != nil {
		t.Fatalf("Error: %v", err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })

	got := rec.snapshot()
	if got[0].Message != "hello" || got[0].Level != entry.Info {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1].Message != "boom" || got[1].Level != entry.Error {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
}

func TestManyProducerGoroutines(t *testing.T) {
	rec := &recordingSink{}
	l := newTestLogger(rec)
	defer l.Close()

	const goroutines = 8
	const perGoroutine = 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.Release()
			for i := 0; i < perGoroutine; i++ {
				_ = l.Info("tick", nil)
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return len(rec.snapshot()) == goroutines*perGoroutine })
}

func TestFlushDrainsControlFrame(t *testing.T) {
	rec := &recordingSink{}
	l := newTestLogger(rec)
	defer l.Close()

	if err := l.Info("before flush", nil); err != nil {
		t.Fatalf("Info: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
}
