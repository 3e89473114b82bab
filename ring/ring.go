// Package ring implements the per-producer input ring: a single-producer /
// single-consumer circular buffer of variable-size, aligned frames, with
// an in-band wraparound sentinel and back-pressure blocking coordinated
// through a wake-up event.
package ring

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/mflodin/asynclog/event"
	"github.com/mflodin/asynclog/membuf"
)

// DispatchPointer is the first machine word of every frame, identifying
// how the consumer should interpret the rest of the frame's bytes.
type DispatchPointer uint64

// WraparoundMarker is a reserved DispatchPointer value that is never a
// valid dispatch id. Seeing it at the current head tells the consumer to
// skip to the beginning of the ring instead of dispatching.
const WraparoundMarker DispatchPointer = ^DispatchPointer(0)

// wordSize is the width, in bytes, of a DispatchPointer — the minimum
// frame alignment allowed.
const wordSize = 8

// Committer is the one operation the ring needs from the log facade:
// publish all frames written up to the caller's current allocation
// point, making them visible to the consumer in program order. It must
// be idempotent if nothing new has been produced since the last call.
type Committer interface {
	Commit()
}

// Ring is a single-producer/single-consumer circular buffer of input
// frames. There are exactly two roles: the producer thread that owns the
// Ring (the only caller of AllocateInputFrame, Close, and the only writer
// of the tail) and the consumer thread (the only caller of
// DiscardInputFrame and Wraparound, and the only writer of the head).
type Ring struct {
	buf  *membuf.Buffer
	data []byte

	size           int
	frameAlignment int
	mask           int

	pinputStart atomic.Uint64 // head; written by consumer, read by both
	pinputEnd   uint64        // tail; producer-private
	pcommitEnd  atomic.Uint64 // committed tail; written by producer's commit, read by both

	consumed  *event.Event
	committer Committer
}

// New constructs a ring of size bytes (a multiple of frameAlignment)
// backed by a buffer aligned to frameAlignment, which must itself be a
// power of two no smaller than a machine word. No frames are live after
// construction: head, tail, and commit-tail all start at offset zero.
func New(committer Committer, size, frameAlignment int) (*Ring, error) {
	if committer == nil {
		return nil, fmt.Errorf("ring: committer must not be nil")
	}
	if !IsPowerOfTwo(frameAlignment) {
		return nil, fmt.Errorf("ring: frame alignment %d is not a power of two", frameAlignment)
	}
	if frameAlignment < wordSize {
		return nil, fmt.Errorf("ring: frame alignment %d is smaller than a dispatch pointer (%d)", frameAlignment, wordSize)
	}
	if size <= 0 || size%frameAlignment != 0 {
		return nil, fmt.Errorf("ring: size %d must be a positive multiple of frame alignment %d", size, frameAlignment)
	}

	buf, err := membuf.Allocate(size, frameAlignment)
	if err != nil {
		return nil, err
	}

	return &Ring{
		buf:            buf,
		data:           buf.Bytes(),
		size:           size,
		frameAlignment: frameAlignment,
		mask:           frameAlignment - 1,
		consumed:       event.New(),
		committer:      committer,
	}, nil
}

// FrameAlignment returns the ring's configured frame alignment.
func (r *Ring) FrameAlignment() int { return r.frameAlignment }

// Size returns the ring's total capacity in bytes.
func (r *Ring) Size() int { return r.size }

func (r *Ring) roundUp(n int) int {
	if n <= 0 {
		return r.frameAlignment
	}
	return RoundUpToAlignment(n, r.frameAlignment)
}

// advance moves a frame pointer forward by distance bytes, wrapping to
// zero exactly when it lands on the end of the buffer. Callers guarantee
// p+distance never overshoots size — a frame is never allowed to straddle
// the end.
func (r *Ring) advance(p uint64, distance uint64) uint64 {
	p += distance
	if p == uint64(r.size) {
		return 0
	}
	if p > uint64(r.size) {
		panic("ring: frame pointer advanced past the end of the buffer")
	}
	return p
}

// AllocateInputFrame reserves ceil(requestedSize, FRAME_ALIGNMENT) bytes
// and returns them as a slice the caller owns until it has written the
// frame and committed it. It blocks (never fails) when the ring has no
// room.
func (r *Ring) AllocateInputFrame(requestedSize int) []byte {
	n := uint64(r.roundUp(requestedSize))
	for {
		pinputEnd := r.pinputEnd
		pinputStart := r.pinputStart.Load()

		if pinputEnd < pinputStart {
			// Contiguous free space in the single interval (pinputEnd, pinputStart).
			free := pinputStart - pinputEnd
			if n < free {
				r.pinputEnd = r.advance(pinputEnd, n)
				return r.data[pinputEnd : pinputEnd+n]
			}
			r.waitInputConsumed()
			continue
		}

		// Split free space: tail segment [pinputEnd, size) and head segment [0, pinputStart).
		free1 := uint64(r.size) - pinputEnd
		if n < free1 {
			r.pinputEnd = r.advance(pinputEnd, n)
			return r.data[pinputEnd : pinputEnd+n]
		}
		free2 := pinputStart
		if n < free2 {
			r.putWraparoundMarker(pinputEnd)
			r.pinputEnd = r.advance(0, n)
			return r.data[0:n]
		}
		r.waitInputConsumed()
	}
}

func (r *Ring) putWraparoundMarker(offset uint64) {
	binary.LittleEndian.PutUint64(r.data[offset:offset+wordSize], uint64(WraparoundMarker))
}

// waitInputConsumed blocks until the consumer has freed some space. If the
// producer itself is the reason the ring looks full — it has written
// frames but never committed them — waiting would deadlock, so it commits
// on the caller's behalf first.
func (r *Ring) waitInputConsumed() {
	if r.pcommitEnd.Load() == r.pinputStart.Load() {
		r.committer.Commit()
	}
	r.consumed.Wait()
}

// Publish advances the committed tail to the current allocation point,
// making every frame allocated so far visible to the consumer. It is
// called by the log facade's Commit() implementation, which first looks
// up the calling producer's own ring. Idempotent when called with no new
// allocations since the last Publish.
func (r *Ring) Publish() {
	r.pcommitEnd.Store(r.pinputEnd)
}

// CommittedEnd returns the offset up to which the consumer may safely
// read, i.e. the last value passed to Publish.
func (r *Ring) CommittedEnd() uint64 {
	return r.pcommitEnd.Load()
}

// Head returns the current read position, for the consumer's dispatch
// loop.
func (r *Ring) Head() uint64 {
	return r.pinputStart.Load()
}

// HasPending reports whether the consumer has any committed frame left
// to read, i.e. whether Head and CommittedEnd still differ.
func (r *Ring) HasPending() bool {
	return r.pinputStart.Load() != r.pcommitEnd.Load()
}

// FrameData returns the buffer from offset to the end of the ring, for the
// consumer to decode the frame that starts there (dispatch word first).
func (r *Ring) FrameData(offset uint64) []byte {
	return r.data[offset:]
}

// DispatchAt reads the dispatch pointer at offset without consuming it.
func (r *Ring) DispatchAt(offset uint64) DispatchPointer {
	return DispatchPointer(binary.LittleEndian.Uint64(r.data[offset : offset+wordSize]))
}

// DiscardInputFrame is called by the consumer once it has finished
// processing a frame of the given (pre-rounding) size. It advances the
// head past the frame and wakes any producer blocked on space, returning
// the new head.
func (r *Ring) DiscardInputFrame(size int) uint64 {
	n := uint64(r.roundUp(size))
	p := r.pinputStart.Load()
	p = r.advance(p, n)
	r.pinputStart.Store(p)
	r.consumed.Signal()
	return p
}

// Wraparound is called by the consumer when it reads WraparoundMarker at
// the current head; it moves the head straight to the beginning of the
// ring. It does not signal the event: the discard that exposed the marker
// already did.
func (r *Ring) Wraparound() uint64 {
	head := r.pinputStart.Load()
	if marker := r.DispatchAt(head); marker != WraparoundMarker {
		panic(fmt.Sprintf("ring: Wraparound called but head %d does not hold WraparoundMarker (got %#x)", head, uint64(marker)))
	}
	r.pinputStart.Store(0)
	return 0
}

// Close flushes anything the owning producer wrote, then blocks until the
// consumer has drained everything this ring ever produced, and finally
// releases the backing buffer. No data is lost at producer exit.
func (r *Ring) Close() {
	r.committer.Commit()
	for r.pinputStart.Load() != r.pinputEnd {
		r.waitInputConsumed()
	}
	r.buf.Free()
}

// Len reports the number of bytes between head and the committed tail,
// modulo wraparound — a diagnostic, not part of the core contract.
func (r *Ring) Len() int {
	start := r.pinputStart.Load()
	end := r.pcommitEnd.Load()
	if end >= start {
		return int(end - start)
	}
	return r.size - int(start) + int(end)
}

// Dump prints a short diagnostic summary of the ring's size, alignment
// and offsets.
func (r *Ring) Dump() {
	fmt.Printf("Ring{size=%d, align=%d, head=%d, tail=%d, commit=%d}\n",
		r.size, r.frameAlignment, r.pinputStart.Load(), r.pinputEnd, r.pcommitEnd.Load())
}
