// Package durable tracks, outside the ring entirely, which drained
// entries still need delivery to an at-least-once downstream sink, and
// retries delivery until it is acknowledged. The ring's own contract
// ends once a frame is discarded; this package gives the consumer side
// of the pipeline an independent delivery guarantee, keyed by the
// sequence number a log consumer assigns each frame it drains.
package durable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// State is where one drained entry sits in the delivery pipeline.
type State uint8

const (
	StatePending State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// Record is what the ledger stores per sequence number.
type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+8+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("durable: record too short")
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[13:]...),
	}, nil
}

// Ledger is a pebble-backed, crash-durable record of every drained
// entry awaiting delivery: a state machine over a key-value store.
type Ledger struct {
	db *pebble.DB
}

// Open opens (or creates) a ledger at dir, with pebble's own WAL enabled
// so a crash mid-write never silently drops a pending record.
func Open(dir string) (*Ledger, error) {
	db, err := pebble.Open(dir, &pebble.Options{DisableWAL: false})
	if err != nil {
		return nil, fmt.Errorf("durable: open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// PutPending records a newly drained entry's payload as awaiting
// delivery.
func (l *Ledger) PutPending(seq uint64, payload []byte) error {
	rec := Record{State: StatePending, Payload: payload}
	return l.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// UpdateState transitions seq to state, recording the attempt.
func (l *Ledger) UpdateState(seq uint64, state State, retries uint32, payload []byte) error {
	rec := Record{State: state, Retries: retries, LastAttempt: time.Now().UnixNano(), Payload: payload}
	return l.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes an acked record.
func (l *Ledger) Delete(seq uint64) error {
	return l.db.Delete(keyFor(seq), pebble.Sync)
}

// Get returns the current record for seq.
func (l *Ledger) Get(seq uint64) (Record, error) {
	val, closer, err := l.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// ScanByState iterates every record currently in state, in sequence
// order.
func (l *Ledger) ScanByState(state State, fn func(seq uint64, rec Record) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("seq/"),
		UpperBound: []byte("seq/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(seq, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("seq/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("seq/"))), "%d", &seq)
	return seq, err
}
