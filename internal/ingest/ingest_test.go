package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/harooos/tdrcluster/internal/common"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]*common.IngestedQuery
	err     error
}

func (f *fakeSink) InsertQueriesBatch(ctx context.Context, queries []*common.IngestedQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := make([]*common.IngestedQuery, len(queries))
	copy(cp, queries)
	f.batches = append(f.batches, cp)
	return nil
}

func TestDecodeValidRecord(t *testing.T) {
	c := &Consumer{}
	payload, _ := json.Marshal(common.IngestedQuery{Id: "q1", Content: "hello", Dataset: "banking77"})
	record := &kgo.Record{Value: payload}

	q, reason, err := c.decode(record)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if reason != "" {
		t.Errorf("reason = %q, want empty", reason)
	}
	if q.Id != "q1" || q.Content != "hello" {
		t.Errorf("decoded query = %+v, want id=q1 content=hello", q)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	c := &Consumer{}
	record := &kgo.Record{Value: []byte("{not json")}

	q, reason, err := c.decode(record)
	if err == nil {
		t.Fatal("decode() expected error for malformed JSON")
	}
	if reason != dlqReasonUnmarshalFailed {
		t.Errorf("reason = %q, want %q", reason, dlqReasonUnmarshalFailed)
	}
	if q != nil {
		t.Errorf("query = %+v, want nil on decode failure", q)
	}
}

func TestDecodeMissingRequiredField(t *testing.T) {
	c := &Consumer{}
	payload, _ := json.Marshal(common.IngestedQuery{Id: "q1", Dataset: "banking77"}) // no content
	record := &kgo.Record{Value: payload}

	q, reason, err := c.decode(record)
	if err == nil {
		t.Fatal("decode() expected validation error for missing content")
	}
	if reason != dlqReasonValidationFailed {
		t.Errorf("reason = %q, want %q", reason, dlqReasonValidationFailed)
	}
	if q != nil {
		t.Errorf("query = %+v, want nil on validation failure", q)
	}
}

func TestDecodeEnrichesMissingID(t *testing.T) {
	c := &Consumer{}
	payload, _ := json.Marshal(common.IngestedQuery{Content: "hello", Dataset: "banking77"})
	record := &kgo.Record{Value: payload}

	q, _, err := c.decode(record)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if q.Id == "" {
		t.Error("decode() left Id empty, want Enrich() to fill it")
	}
	if q.Timestamp.IsZero() {
		t.Error("decode() left Timestamp zero, want Enrich() to fill it")
	}
}

func TestProcessBatchesFlushesOnSize(t *testing.T) {
	sink := &fakeSink{}
	c := &Consumer{sink: sink, batchSize: 2, flushInterval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	batchCh := make(chan batchItem, 4)
	done := make(chan struct{})
	go func() {
		c.processBatches(ctx, batchCh)
		close(done)
	}()

	q1 := &common.IngestedQuery{Id: "q1", Content: "a", Dataset: "d"}
	q2 := &common.IngestedQuery{Id: "q2", Content: "b", Dataset: "d"}
	batchCh <- batchItem{record: &kgo.Record{}, query: q1}
	batchCh <- batchItem{record: &kgo.Record{}, query: q2}

	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	total := 0
	for _, b := range sink.batches {
		total += len(b)
	}
	if total != 2 {
		t.Errorf("sink received %d queries total, want 2", total)
	}
}

func TestProcessBatchesDropsDecodeFailuresFromSinkCall(t *testing.T) {
	sink := &fakeSink{}
	c := &Consumer{sink: sink, batchSize: 10, flushInterval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	batchCh := make(chan batchItem, 4)
	done := make(chan struct{})
	go func() {
		c.processBatches(ctx, batchCh)
		close(done)
	}()

	batchCh <- batchItem{record: &kgo.Record{}, query: nil} // decode failure, no query
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 1 {
		t.Fatalf("got %d flushed batches, want 1 (flush on ctx.Done)", len(sink.batches))
	}
	if len(sink.batches[0]) != 0 {
		t.Errorf("flushed batch contains %d queries, want 0 (nil query should be dropped from the sink call)", len(sink.batches[0]))
	}
}
