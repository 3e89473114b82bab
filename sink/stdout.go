package sink

import (
	"bufio"
	"os"
	"sync"

	"github.com/mflodin/asynclog/entry"
)

type stdoutSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (s *stdoutSink) Write(e entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		s.w = bufio.NewWriter(os.Stdout)
	}
	if _, err := s.w.WriteString(e.Format()); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *stdoutSink) Close() error { return nil }
