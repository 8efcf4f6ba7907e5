package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// IngestedQuery is the wire shape carried on the ingestion topic (cmd/ingest)
// before it is embedded and persisted into the queries table. It is
// deliberately thin: embedding happens downstream, once the batch is large
// enough to make a single provider call worthwhile.
type IngestedQuery struct {
	Id        string    `json:"id"`
	Content   string    `json:"content"`
	Dataset   string    `json:"dataset"`
	Timestamp time.Time `json:"timestamp"`
}

func (q *IngestedQuery) Validate() error {
	if content := strings.TrimSpace(q.Content); content == "" {
		return fmt.Errorf("content is a required field")
	}
	if dataset := strings.TrimSpace(q.Dataset); dataset == "" {
		return fmt.Errorf("dataset is a required field")
	}
	return nil
}

func (q *IngestedQuery) Enrich() {
	if strings.TrimSpace(q.Id) == "" {
		q.Id = randomHexStr(10)
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now().UTC()
	}
}

func randomHexStr(length int) string {
	key := make([]byte, length)
	_, err := rand.Read(key)
	if err != nil {
		panic("failed to generate random key, this should never happen")
	}
	return hex.EncodeToString(key)
}

// TimeRange is a closed start/end time window. Validate requires both ends
// to be set and start not to be after end.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r *TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("time range must include start and end")
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("start time must be before end time")
	}
	return nil
}
