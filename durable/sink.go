package durable

import (
	"sync/atomic"

	"github.com/mflodin/asynclog/entry"
)

// DurableSink is the write side of the durable delivery pipeline: rather
// than publishing an entry itself, it records it in the ledger as
// PENDING under a monotonically increasing sequence number, and leaves
// the actual delivery to a Retrier draining the same ledger. An entry
// that reaches this sink survives a crash before a Retrier ever gets to
// it, so delivery is guaranteed eventually, even across process restarts.
type DurableSink struct {
	ledger *Ledger
	seq    atomic.Uint64
}

// NewDurableSink wraps ledger as a sink.Sink. The caller is responsible
// for running a Retrier against the same ledger to actually deliver what
// this sink records.
func NewDurableSink(ledger *Ledger) *DurableSink {
	s := &DurableSink{ledger: ledger}
	// Continue numbering after any records an earlier process left in the
	// ledger, so new entries never overwrite ones awaiting delivery.
	var last uint64
	for _, st := range []State{StatePending, StateSent, StateAcked} {
		_ = ledger.ScanByState(st, func(seq uint64, _ Record) error {
			if seq > last {
				last = seq
			}
			return nil
		})
	}
	s.seq.Store(last)
	return s
}

func (s *DurableSink) Write(e entry.Entry) error {
	seq := s.seq.Add(1)
	return s.ledger.PutPending(seq, []byte(e.Format()))
}

func (s *DurableSink) Close() error {
	return nil
}
