package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/harooos/tdrcluster/internal/cluster"
)

// Loader wraps Dataset with the sub-sampling behavior
// original_source/services/dataset_manager.py:load_dataset_as_queries
// applies on top of a plain load (runtime.sample_size, spec.md §6).
type Loader struct {
	dataset *Dataset
}

func NewLoader(dataset *Dataset) *Loader {
	return &Loader{dataset: dataset}
}

// Load returns every embedded query for datasetName, randomly
// downsampled to sampleSize when sampleSize is set and smaller than the
// full set, mirroring the original's `if sample_size and sample_size <
// len(data): data = random.sample(data, sample_size)`.
func (l *Loader) Load(ctx context.Context, datasetName string, sampleSize *int) ([]cluster.Query, error) {
	queries, err := l.dataset.LoadQueries(ctx, datasetName)
	if err != nil {
		return nil, err
	}

	if sampleSize == nil || *sampleSize <= 0 || *sampleSize >= len(queries) {
		return queries, nil
	}

	rand.Shuffle(len(queries), func(i, j int) { queries[i], queries[j] = queries[j], queries[i] })
	sampled := queries[:*sampleSize]
	slog.Info("sub-sampled dataset", "dataset", datasetName, "full_size", len(queries), "sample_size", *sampleSize)
	return sampled, nil
}

// snapshotRecord is one row of the full JSON backup export, the idiomatic
// substitute for the original's pickle backup
// (original_source/services/embedding_service.py).
type snapshotRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
}

// ExportSnapshot writes every (id, content, embedding) triple for
// datasetName as a JSON array, a full offline backup of the embedding
// cache the way embedding_service.py's pickle file served as a backup of
// the CSV+npz pair.
func (d *Dataset) ExportSnapshot(ctx context.Context, w io.Writer, datasetName string) error {
	queries, err := d.LoadQueries(ctx, datasetName)
	if err != nil {
		return fmt.Errorf("load dataset for snapshot: %w", err)
	}

	records := make([]snapshotRecord, len(queries))
	for i, q := range queries {
		records[i] = snapshotRecord{ID: q.ID, Content: q.Content, Embedding: q.Embedding}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
