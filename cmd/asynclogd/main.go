// Command asynclogd demonstrates wiring a Logger end to end: several
// producer goroutines logging concurrently, drained to a rotating file
// sink, stdout, and a durable ledger whose Retrier replays pending
// entries to Kafka until each one is acknowledged, surviving a restart
// between drain and delivery.
package main

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/mflodin/asynclog/durable"
	"github.com/mflodin/asynclog/logfacade"
	"github.com/mflodin/asynclog/sink"
)

func main() {
	// ---------------- Sinks ----------------

	fileSink, err := sink.NewFileSink(sink.FileSinkConfig{
		Dir:             "./log_data",
		SegmentSize:     8 * 1024 * 1024,
		SegmentDuration: time.Minute,
	})
	if err != nil {
		log.Fatalf("file sink init failed: %v", err)
	}

	// ---------------- Durable delivery: ledger + Kafka retrier ----------------

	ledger, err := durable.Open("./log_ledger")
	if err != nil {
		log.Fatalf("ledger init failed: %v", err)
	}
	defer ledger.Close()

	kafkaSink := sink.NewKafkaSink([]string{"localhost:9092"}, "asynclog")
	defer kafkaSink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retrier := durable.NewRetrier(ledger, kafkaSink)
	retrier.Start(ctx, 2*time.Second)
	defer retrier.Close()

	durableSink := durable.NewDurableSink(ledger)

	// ---------------- Logger ----------------

	logger := logfacade.New(logfacade.Config{
		RingSize:       1 << 20,
		FrameAlignment: 64,
		Sinks:          []sink.Sink{fileSink, sink.Stdout(), durableSink},
	})
	defer logger.Close()

	// ---------------- Producers ----------------

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			defer logger.Release()
			for n := 0; n < 1000; n++ {
				_ = logger.Info("tick", map[string]string{"producer": strconv.Itoa(producer), "n": strconv.Itoa(n)})
			}
		}(i)
	}
	wg.Wait()

	_ = logger.Flush()
	log.Println("asynclogd: producers finished, draining")
}
