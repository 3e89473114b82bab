package tlocal

import (
	"bytes"
	"runtime"
	"strconv"
)

// CurrentGoroutineID recovers the calling goroutine's id by parsing the
// header line of its own stack trace ("goroutine 123 [running]:"). This is
// the same best-effort "poor man's TLS" technique several Go tracing and
// logging libraries use in place of true goroutine-local storage. It is
// not a documented part of the runtime's API; it is only ever used here to
// pick a stable map key for the lifetime of one goroutine, never for
// anything correctness-critical.
func CurrentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(header []byte) uint64 {
	const prefix = "goroutine "
	header = bytes.TrimPrefix(header, []byte(prefix))
	idx := bytes.IndexByte(header, ' ')
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(header[:idx]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// LiveGoroutineIDs dumps every currently running goroutine's stack and
// returns the set of their ids. Holder's background reaper uses this to
// approximate "this producer's goroutine has exited" in the absence of an
// OS-level thread-exit callback. It is comparatively expensive and is only
// ever meant to run on a slow ticker, never on the logging hot path.
func LiveGoroutineIDs() map[uint64]struct{} {
	buf := make([]byte, 1<<16)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, len(buf)*2)
	}

	ids := make(map[uint64]struct{})
	for _, block := range bytes.Split(buf, []byte("\n\n")) {
		header := block
		if nl := bytes.IndexByte(block, '\n'); nl >= 0 {
			header = block[:nl]
		}
		if id := parseGoroutineID(header); id != 0 {
			ids[id] = struct{}{}
		}
	}
	return ids
}
