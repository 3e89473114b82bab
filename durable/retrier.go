package durable

import (
	"context"
	"log"
	"time"
)

// publisher is the delivery mechanism a Retrier drives. sink.KafkaSink
// satisfies it via PublishRaw; kept unexported and structural (rather
// than importing the sink package) so tests can substitute a fake
// without a live broker, and so durable never needs to import sink.
type publisher interface {
	PublishRaw(ctx context.Context, payload []byte) error
}

// Retrier periodically replays every PENDING ledger record and attempts
// delivery through publisher, marking each SENT before attempting (so a
// crash mid-send is retried rather than silently lost) and ACKED once
// the broker confirms it.
type Retrier struct {
	ledger    *Ledger
	publisher publisher

	stop chan struct{}
	done chan struct{}
}

// NewRetrier constructs a Retrier that replays ledger's PENDING records
// through publisher. The caller constructs and owns publisher (e.g. a
// sink.KafkaSink) and is responsible for closing it.
func NewRetrier(ledger *Ledger, publisher publisher) *Retrier {
	return &Retrier{ledger: ledger, publisher: publisher}
}

// Start launches the background replay loop on the given interval. It
// runs until ctx is done or Close is called.
func (r *Retrier) Start(ctx context.Context, interval time.Duration) {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	log.Println("durable: retrier started")

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.replayOnce(ctx)
			}
		}
	}()
}

func (r *Retrier) replayOnce(ctx context.Context) {
	deliver := func(seq uint64, rec Record) error {
		_ = r.ledger.UpdateState(seq, StateSent, rec.Retries, rec.Payload)

		if err := r.publisher.PublishRaw(ctx, rec.Payload); err != nil {
			_ = r.ledger.UpdateState(seq, StatePending, rec.Retries+1, rec.Payload)
			return nil // retry later
		}

		_ = r.ledger.UpdateState(seq, StateAcked, rec.Retries, rec.Payload)
		return r.ledger.Delete(seq)
	}
	_ = r.ledger.ScanByState(StatePending, deliver)
	// Records still SENT here were left by a crash mid-send; replay them too.
	_ = r.ledger.ScanByState(StateSent, deliver)
}

// Close stops the replay loop. It does not close publisher; ownership
// stays with whoever constructed it.
func (r *Retrier) Close() error {
	if r.stop != nil {
		close(r.stop)
		<-r.done
	}
	return nil
}
