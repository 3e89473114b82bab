// Package logfacade is the front-end a producer goroutine calls into:
// one ring per goroutine, looked up lazily through tlocal.Holder, plus a
// background consumer that drains every registered ring into a set of
// sinks.
package logfacade

import (
	"time"

	"github.com/mflodin/asynclog/sink"
)

// Config configures a Logger. Every field has a default applied by New;
// the zero value means "use the default".
type Config struct {
	// RingSize is the capacity, in bytes, of each producer's ring.
	RingSize int
	// FrameAlignment is the alignment every frame in a ring is rounded
	// up to; must be a power of two no smaller than a dispatch pointer.
	FrameAlignment int
	// Sinks receive every formatted entry the consumer drains.
	Sinks []sink.Sink
	// ReaperInterval is how often the holder's background reaper checks
	// for producer goroutines that exited without calling Release.
	ReaperInterval time.Duration
	// PollInterval is how often the consumer loop checks registered
	// rings for newly committed frames when none are immediately ready.
	PollInterval time.Duration
}

const (
	defaultRingSize       = 1 << 20 // 1 MiB
	defaultFrameAlignment = 64
	defaultReaperInterval = 2 * time.Second
	defaultPollInterval   = time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.RingSize == 0 {
		c.RingSize = defaultRingSize
	}
	if c.FrameAlignment == 0 {
		c.FrameAlignment = defaultFrameAlignment
	}
	if c.ReaperInterval == 0 {
		c.ReaperInterval = defaultReaperInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Sinks == nil {
		c.Sinks = []sink.Sink{sink.Stdout()}
	}
	return c
}
