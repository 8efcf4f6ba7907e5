package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
)

type dlqRecord struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalValueB64  string    `json:"original_value_b64"`
	FailedAt          time.Time `json:"failed_at"`
	Reason            string    `json:"reason"`
	Error             string    `json:"error,omitempty"`
}

var dlqMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ingest",
		Name:      "dlq_messages_total",
		Help:      "Total number of ingested records sent to the dead letter queue",
	},
	[]string{"reason"},
)

func (c *Consumer) publishToDLQ(ctx context.Context, record *kgo.Record, reason string, err error) {
	if c.dlq == nil {
		slog.Debug("DLQ producer not configured, skipping", "reason", reason, "error", err, "offset", record.Offset)
		return
	}

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	rec := dlqRecord{
		OriginalTopic:     record.Topic,
		OriginalPartition: record.Partition,
		OriginalOffset:    record.Offset,
		OriginalValueB64:  base64.StdEncoding.EncodeToString(record.Value),
		FailedAt:          time.Now().UTC(),
		Reason:            reason,
		Error:             errStr,
	}

	payload, marshalErr := json.Marshal(rec)
	if marshalErr != nil {
		slog.Warn("failed to marshal DLQ record", "error", marshalErr, "original_error", err, "offset", record.Offset)
		return
	}

	dlqMsg := &kgo.Record{Topic: c.dlqTopic, Key: record.Key, Value: payload}
	c.dlq.Produce(ctx, dlqMsg, func(r *kgo.Record, produceErr error) {
		if produceErr != nil {
			slog.Warn("failed to produce to DLQ", "error", produceErr, "original_offset", record.Offset, "reason", reason)
			return
		}
		dlqMessagesTotal.WithLabelValues(reason).Inc()
		slog.Debug("record sent to DLQ", "reason", reason, "original_offset", record.Offset, "dlq_offset", r.Offset)
	})
}
