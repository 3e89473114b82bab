package logfacade

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/mflodin/asynclog/entry"
	"github.com/mflodin/asynclog/ring"
	"github.com/mflodin/asynclog/sink"
	"github.com/mflodin/asynclog/tlocal"
)

// Logger is the producer-facing front end: every goroutine that logs
// through it gets its own ring, created lazily on first use and torn
// down either explicitly (Release) or by the holder's background
// reaper. A single background goroutine (consumeLoop) drains every
// registered ring into the configured sinks.
type Logger struct {
	cfg Config

	holder *tlocal.Holder[uint64, ring.Ring]

	mu    sync.Mutex
	rings map[uint64]*ring.Ring

	sinks []sink.Sink

	stop chan struct{}
	done chan struct{}
}

// New constructs a Logger and starts its consumer loop and reaper.
// Callers should defer Close to drain every ring and flush every sink on
// shutdown.
func New(cfg Config) *Logger {
	cfg = cfg.withDefaults()
	l := &Logger{
		cfg:   cfg,
		rings: make(map[uint64]*ring.Ring),
		sinks: cfg.Sinks,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	l.holder = tlocal.New(l.newRing, l.destroyRing)
	l.holder.StartReaper(tlocal.LiveGoroutineIDs, cfg.ReaperInterval)
	go l.consumeLoop()
	return l
}

func (l *Logger) newRing() (*ring.Ring, error) {
	r, err := ring.New(l, l.cfg.RingSize, l.cfg.FrameAlignment)
	if err != nil {
		return nil, err
	}
	gid := tlocal.CurrentGoroutineID()
	l.mu.Lock()
	l.rings[gid] = r
	l.mu.Unlock()
	return r, nil
}

func (l *Logger) destroyRing(gid uint64, r *ring.Ring) {
	r.Close()
	l.mu.Lock()
	delete(l.rings, gid)
	l.mu.Unlock()
}

// Commit implements ring.Committer. Every ring constructed by this
// Logger shares it as their committer, so Commit looks the ring up by the
// caller's own goroutine id. On the allocation path the caller is the
// producer that owns the ring, so the lookup finds that ring. When a ring
// is closed by the reaper or by Close, the caller is another goroutine:
// the lookup finds a different ring or none, and nothing is published for
// the ring being closed. Log and Flush publish each frame as they write it.
func (l *Logger) Commit() {
	gid := tlocal.CurrentGoroutineID()
	l.mu.Lock()
	r := l.rings[gid]
	l.mu.Unlock()
	if r != nil {
		r.Publish()
	}
}

func (l *Logger) ringForCaller() (*ring.Ring, error) {
	return l.holder.Get(tlocal.CurrentGoroutineID())
}

// Log encodes and enqueues one entry on the calling goroutine's ring,
// blocking if that ring has no room (back-pressure).
func (l *Logger) Log(level entry.Level, msg string, fields map[string]string) error {
	r, err := l.ringForCaller()
	if err != nil {
		return err
	}
	body := entry.Encode(entry.Entry{
		Level:   level,
		Time:    time.Now().UnixNano(),
		Message: msg,
		Fields:  fields,
	})
	frame := r.AllocateInputFrame(ring.DispatchWordSize + len(body))
	binary.LittleEndian.PutUint64(frame[:ring.DispatchWordSize], uint64(entry.Dispatch))
	copy(frame[ring.DispatchWordSize:], body)
	r.Publish()
	return nil
}

func (l *Logger) Debug(msg string, fields map[string]string) error { return l.Log(entry.Debug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]string) error  { return l.Log(entry.Info, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]string) error  { return l.Log(entry.Warn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]string) error { return l.Log(entry.Error, msg, fields) }

// Flush enqueues a control frame that, once the consumer reaches it,
// flushes every sink that has a Flush() error method; other sinks are
// left as they are. It commits immediately so the flush is not stuck
// behind an unrelated back-pressure wait.
func (l *Logger) Flush() error {
	r, err := l.ringForCaller()
	if err != nil {
		return err
	}
	frame := r.AllocateInputFrame(ring.DispatchWordSize)
	binary.LittleEndian.PutUint64(frame[:ring.DispatchWordSize], uint64(entry.FlushDispatch))
	r.Publish()
	return nil
}

// Release tears down the calling goroutine's ring immediately rather
// than waiting for the reaper, draining everything it has produced so
// far first.
func (l *Logger) Release() {
	l.holder.Release(tlocal.CurrentGoroutineID())
}

// Close stops the consumer loop and the reaper, releasing every
// surviving ring (which drains it) and closing every sink.
func (l *Logger) Close() error {
	close(l.stop)
	<-l.done
	l.holder.Stop()

	l.mu.Lock()
	gids := make([]uint64, 0, len(l.rings))
	for gid := range l.rings {
		gids = append(gids, gid)
	}
	l.mu.Unlock()
	for _, gid := range gids {
		l.holder.Release(gid)
	}

	var firstErr error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) consumeLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			l.drainOnce()
			return
		case <-ticker.C:
			l.drainOnce()
		}
	}
}

func (l *Logger) drainOnce() {
	l.mu.Lock()
	rs := make([]*ring.Ring, 0, len(l.rings))
	for _, r := range l.rings {
		rs = append(rs, r)
	}
	l.mu.Unlock()

	for _, r := range rs {
		l.drainRing(r)
	}
}

func (l *Logger) drainRing(r *ring.Ring) {
	for r.HasPending() {
		head := r.Head()
		dispatch := r.DispatchAt(head)
		if dispatch == ring.WraparoundMarker {
			r.Wraparound()
			continue
		}

		frame := r.FrameData(head)
		switch dispatch {
		case entry.Dispatch:
			e, n, err := entry.Decode(frame[ring.DispatchWordSize:])
			if err != nil {
				r.DiscardInputFrame(ring.DispatchWordSize)
				continue
			}
			l.forward(e)
			r.DiscardInputFrame(ring.DispatchWordSize + n)
		case entry.FlushDispatch:
			l.flushSinks()
			r.DiscardInputFrame(ring.DispatchWordSize)
		default:
			r.DiscardInputFrame(ring.DispatchWordSize)
		}
	}
}

func (l *Logger) forward(e entry.Entry) {
	for _, s := range l.sinks {
		_ = s.Write(e)
	}
}

func (l *Logger) flushSinks() {
	for _, s := range l.sinks {
		if f, ok := s.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
}
