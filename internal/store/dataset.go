// Package store persists queries, their embeddings, and per-run category
// assignments in Postgres, and caches reviewer decision sets in Redis
// (spec.md §6 "Persisted artifacts", "Embedding cache").
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harooos/tdrcluster/internal/cluster"
	"github.com/harooos/tdrcluster/internal/common"
	"github.com/harooos/tdrcluster/internal/embedding"
)

// Dataset wraps a pgx pool with the queries/embedding-cache operations
// the loop driver needs.
type Dataset struct {
	db *pgxpool.Pool
}

func NewDataset(db *pgxpool.Pool) *Dataset {
	return &Dataset{db: db}
}

// InsertQueriesBatch stages raw ingested queries with no embedding yet;
// IngestAndEmbed backfills embeddings for these rows on the next load.
// Implements ingest.Sink.
func (d *Dataset) InsertQueriesBatch(ctx context.Context, queries []*common.IngestedQuery) error {
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(
			`INSERT INTO queries (id, dataset, content) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			q.Id, q.Dataset, q.Content,
		)
	}

	br := d.db.SendBatch(ctx, batch)
	for range queries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert ingested query batch: %w", err)
		}
	}
	return br.Close()
}

// LoadQueries returns every cached (query, embedding) pair for a dataset
// name, in id order, skipping the embedding provider entirely when the
// cache is already warm.
func (d *Dataset) LoadQueries(ctx context.Context, dataset string) ([]cluster.Query, error) {
	rows, err := d.db.Query(ctx,
		`SELECT id, content, embedding FROM queries WHERE dataset = $1 AND embedding IS NOT NULL ORDER BY id`,
		dataset,
	)
	if err != nil {
		return nil, fmt.Errorf("load queries for dataset %q: %w", dataset, err)
	}
	defer rows.Close()

	var out []cluster.Query
	for rows.Next() {
		var q cluster.Query
		if err := rows.Scan(&q.ID, &q.Content, &q.Embedding); err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// PendingContents returns the id -> content map for rows already staged
// by the ingest consumer but not yet embedded, the backlog IngestAndEmbed
// clears before a run starts.
func (d *Dataset) PendingContents(ctx context.Context, dataset string) (map[string]string, error) {
	rows, err := d.db.Query(ctx,
		`SELECT id, content FROM queries WHERE dataset = $1 AND embedding IS NULL`,
		dataset,
	)
	if err != nil {
		return nil, fmt.Errorf("load pending queries for dataset %q: %w", dataset, err)
	}
	defer rows.Close()

	contents := make(map[string]string)
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan pending query row: %w", err)
		}
		contents[id] = content
	}
	return contents, rows.Err()
}

// IngestAndEmbed inserts (query_id, content, dataset) rows for any
// queries not already cached, or fills in the embedding of rows already
// staged without one, computing embeddings via provider only for
// the cache misses, then returns the full query set with embeddings
// attached (the embedding cache table described in spec.md §6).
func (d *Dataset) IngestAndEmbed(ctx context.Context, dataset string, contents map[string]string, provider embedding.Provider) ([]cluster.Query, error) {
	existing, err := d.LoadQueries(ctx, dataset)
	if err != nil {
		return nil, err
	}
	cached := make(map[string]bool, len(existing))
	for _, q := range existing {
		cached[q.ID] = true
	}

	var missIDs []string
	var missTexts []string
	for id, content := range contents {
		if !cached[id] {
			missIDs = append(missIDs, id)
			missTexts = append(missTexts, content)
		}
	}

	if len(missIDs) > 0 {
		vectors, err := provider.Embed(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embed %d new queries: %w", len(missIDs), err)
		}

		batch := &pgx.Batch{}
		for i, id := range missIDs {
			batch.Queue(
				`INSERT INTO queries (id, dataset, content, embedding) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding`,
				id, dataset, missTexts[i], vectors[i],
			)
		}
		br := d.db.SendBatch(ctx, batch)
		for range missIDs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return nil, fmt.Errorf("persist embedded queries: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("close embedded query batch: %w", err)
		}

		for i, id := range missIDs {
			existing = append(existing, cluster.Query{ID: id, Content: missTexts[i], Embedding: vectors[i]})
		}
	}

	return existing, nil
}

// PersistResults writes the final per-query category assignments for one
// run: the tabular artifact described in spec.md §6 ("one tabular file
// per run containing query_id, query_content, category_id,
// category_description, dataset, timestamp").
func (d *Dataset) PersistResults(ctx context.Context, runID, dataset string, s *cluster.State) error {
	now := time.Now().UTC()

	batch := &pgx.Batch{}
	for _, catID := range s.Categories.Order() {
		cat, _ := s.Categories.Get(catID)
		for _, q := range cat.Queries {
			batch.Queue(
				`INSERT INTO category_results (run_id, query_id, query_content, category_id, category_description, dataset, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (run_id, query_id) DO UPDATE SET category_id = EXCLUDED.category_id, category_description = EXCLUDED.category_description`,
				runID, q.ID, q.Content, cat.ID, cat.Description, dataset, now,
			)
		}
	}
	n := batch.Len()
	if n == 0 {
		return nil
	}

	br := d.db.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("persist category result %d/%d: %w", i+1, n, err)
		}
	}
	return br.Close()
}
