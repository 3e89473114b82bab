// Package sink provides the consumer-side outputs a Logger can drain
// decoded entries into. Stdout returns the simplest case; NewFileSink
// returns a buffered, size/duration-rotated segment writer; KafkaSink
// publishes over a segmentio/kafka-go writer.
package sink

import "github.com/mflodin/asynclog/entry"

// Sink receives every entry the consumer loop drains from every
// registered ring, in the order each ring committed them. A sink that
// fans out over the network or to disk should not block the consumer
// loop indefinitely; Write's context-free signature is deliberate, so
// callers that need a deadline wrap it themselves.
type Sink interface {
	Write(e entry.Entry) error
	Close() error
}

// Stdout returns a Sink that writes every entry's Format() to standard
// output.
func Stdout() Sink {
	return &stdoutSink{}
}
