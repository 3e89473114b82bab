package durable

import "testing"

func TestPutPendingThenScanByState(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.PutPending(1, []byte("first")); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	if err := l.PutPending(2, []byte("second")); err != nil {
		t.Fatalf("PutPending: %v", err)
	}

	var seen []uint64
	err = l.ScanByState(StatePending, func(seq uint64, rec Record) error {
		seen = append(seen, seq)
		if rec.State != StatePending {
			t.Fatalf("expected StatePending, got %v", rec.State)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScanByState: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected sequence [1 2], got %v", seen)
	}
}

func TestUpdateStateMovesOutOfScan(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.PutPending(1, []byte("payload")); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	if err := l.UpdateState(1, StateAcked, 0, []byte("payload")); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	var pending int
	_ = l.ScanByState(StatePending, func(uint64, Record) error { pending++; return nil })
	if pending != 0 {
		t.Fatalf("expected no pending records after UpdateState, got %d", pending)
	}

	rec, err := l.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State != StateAcked {
		t.Fatalf("expected StateAcked, got %v", rec.State)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.PutPending(1, []byte("payload")); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	if err := l.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.Get(1); err == nil {
		t.Fatal("expected Get to fail after Delete")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{StatePending: "PENDING", StateSent: "SENT", StateAcked: "ACKED"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
