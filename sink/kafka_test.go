package sink

import "testing"

// KafkaSink talks to a real broker over the network for Write/PublishRaw,
// so this only exercises the construction surface; no live broker is
// available in this environment.
func TestNewKafkaSinkConfiguresTopic(t *testing.T) {
	s := NewKafkaSink([]string{"localhost:9092"}, "asynclog")
	defer s.Close()

	if got := s.Topic(); got != "asynclog" {
		t.Fatalf("Topic() = %q, want %q", got, "asynclog")
	}
}

func TestKafkaSinkSatisfiesSink(t *testing.T) {
	var _ Sink = NewKafkaSink([]string{"localhost:9092"}, "asynclog")
}
