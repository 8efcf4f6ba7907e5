// Package ingest consumes raw queries from Kafka and stages them for
// embedding and clustering, the companion ingestion path described in
// SPEC_FULL.md's domain-stack expansion (adapted from the teacher's
// processor-svc).
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/harooos/tdrcluster/internal/common"
)

// Sink is the minimal persistence surface Consumer needs; store.Dataset
// satisfies it directly and cmd/ingest passes one in as is.
type Sink interface {
	InsertQueriesBatch(ctx context.Context, queries []*common.IngestedQuery) error
}

type batchItem struct {
	record *kgo.Record
	query  *common.IngestedQuery
}

// Consumer pulls records off one Kafka topic, batches them, and flushes
// to Sink on a size or time trigger, mirroring the teacher's
// processor-svc consume/processBatches split.
type Consumer struct {
	client        *kgo.Client
	sink          Sink
	dlq           *kgo.Client
	dlqTopic      string
	batchSize     int
	flushInterval time.Duration
}

func NewConsumer(client *kgo.Client, sink Sink, dlq *kgo.Client, dlqTopic string, batchSize int, flushInterval time.Duration) *Consumer {
	return &Consumer{
		client:        client,
		sink:          sink,
		dlq:           dlq,
		dlqTopic:      dlqTopic,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

const (
	dlqReasonUnmarshalFailed  = "unmarshal_failed"
	dlqReasonValidationFailed = "validation_failed"
)

// Run drives the consume loop until ctx is cancelled, blocking the
// caller (intended to be launched in its own goroutine, same as the
// teacher's s.consume/s.processBatches pair).
func (c *Consumer) Run(ctx context.Context) {
	batchCh := make(chan batchItem, c.batchSize*2)
	go c.processBatches(ctx, batchCh)
	c.consume(ctx, batchCh)
}

func (c *Consumer) consume(ctx context.Context, batchCh chan<- batchItem) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) || errors.Is(err, kgo.ErrClientClosed) {
				return
			}
			slog.Warn("kafka fetch error", "error", err, "topic", topic, "partition", partition)
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			query, reason, decodeErr := c.decode(record)
			if reason != "" {
				c.publishToDLQ(ctx, record, reason, decodeErr)
			}
			select {
			case batchCh <- batchItem{record: record, query: query}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Consumer) decode(record *kgo.Record) (*common.IngestedQuery, string, error) {
	var q common.IngestedQuery
	if err := json.Unmarshal(record.Value, &q); err != nil {
		slog.Warn("failed to decode ingested query", "error", err, "topic", record.Topic, "offset", record.Offset)
		return nil, dlqReasonUnmarshalFailed, err
	}

	q.Enrich()
	if err := q.Validate(); err != nil {
		slog.Warn("invalid ingested query", "error", err, "id", q.Id, "offset", record.Offset)
		return nil, dlqReasonValidationFailed, err
	}

	return &q, "", nil
}

func (c *Consumer) processBatches(ctx context.Context, batchCh <-chan batchItem) {
	batch := make([]batchItem, 0, c.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		queries := make([]*common.IngestedQuery, 0, len(batch))
		records := make([]*kgo.Record, 0, len(batch))
		for _, item := range batch {
			records = append(records, item.record)
			if item.query != nil {
				queries = append(queries, item.query)
			}
		}

		if err := c.sink.InsertQueriesBatch(ctx, queries); err != nil {
			slog.Error("failed to persist query batch", "error", err, "count", len(queries))
			batch = batch[:0]
			return
		}

		if c.client != nil {
			if err := c.client.CommitRecords(ctx, records...); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("failed to commit batch offsets", "error", err, "count", len(records))
			}
		}

		batch = batch[:0]
	}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case item, ok := <-batchCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) >= c.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			drain := true
			for drain {
				select {
				case item := <-batchCh:
					batch = append(batch, item)
				default:
					drain = false
				}
			}
			flush()
			return
		}
	}
}
