// Package dispatch applies a validated decision set to the loop state:
// creating categories, assigning clusters to existing ones, or enqueueing
// subdivisions (spec.md §4.4).
package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/harooos/tdrcluster/internal/cluster"
)

// Apply executes every decision exactly once against state, then clears
// the batch (spec.md §4.4 "Batch cleanup"). Decisions are iterated in the
// order they appear, not per cluster ref, so a multi-ref decision is
// never double-applied (spec.md §4.4 "Multi-ref handling subtlety", §9
// open question).
func Apply(s *cluster.State, batch []*cluster.Cluster, decisions []*cluster.Decision) {
	byID := make(map[string]*cluster.Cluster, len(batch))
	for _, c := range batch {
		byID[c.ID] = c
	}

	for _, d := range decisions {
		switch d.Action {
		case cluster.ActionCreate:
			applyCreate(s, byID, d)
		case cluster.ActionAssign:
			applyAssign(s, byID, d)
		case cluster.ActionSubdivide:
			applySubdivide(s, byID, d)
		default:
			slog.Warn("dispatcher skipping decision with unknown action", "action", d.Action, "refs", d.ClusterRefs)
		}
	}

	s.Batch = nil
}

func resolve(byID map[string]*cluster.Cluster, refs []string) []*cluster.Cluster {
	out := make([]*cluster.Cluster, 0, len(refs))
	for _, ref := range refs {
		if c, ok := byID[ref]; ok {
			out = append(out, c)
		}
	}
	return out
}

func applyCreate(s *cluster.State, byID map[string]*cluster.Cluster, d *cluster.Decision) {
	clusters := resolve(byID, d.ClusterRefs)
	if len(clusters) == 0 {
		slog.Warn("create decision resolved to no clusters, skipping", "refs", d.ClusterRefs)
		return
	}

	catID := nextCategoryID(s)
	cat := &cluster.Category{ID: catID, Description: d.Description}
	for _, c := range clusters {
		cat.Queries = append(cat.Queries, c.Queries...)
		cat.Samples = append(cat.Samples, c.Samples...)
	}
	if maxSamples := maxSamplesCap(s); len(cat.Samples) > maxSamples {
		cat.Samples = cat.Samples[:maxSamples]
	}

	s.Categories.Put(cat)
	slog.Info("dispatcher created category", "id", catID, "refs", d.ClusterRefs, "queries", len(cat.Queries))
}

func applyAssign(s *cluster.State, byID map[string]*cluster.Cluster, d *cluster.Decision) {
	clusters := resolve(byID, d.ClusterRefs)
	if len(clusters) != len(d.ClusterRefs) {
		slog.Warn("assign decision references missing cluster(s), skipping", "refs", d.ClusterRefs)
		return
	}

	cat, ok := s.Categories.Get(d.TargetID)
	if !ok {
		slog.Warn("assign decision targets unknown category, skipping", "target_id", d.TargetID, "refs", d.ClusterRefs)
		return
	}

	for _, c := range clusters {
		cat.Queries = append(cat.Queries, c.Queries...)
		cat.Samples = append(cat.Samples, c.Samples...)
	}

	if d.DescriptionUpdate != cluster.NoDescriptionUpdate {
		if cat, ok := s.Categories.Get(d.TargetID); ok {
			cat.Description = d.DescriptionUpdate
		}
	}

	slog.Info("dispatcher assigned clusters", "target_id", d.TargetID, "refs", d.ClusterRefs)
}

func applySubdivide(s *cluster.State, byID map[string]*cluster.Cluster, d *cluster.Decision) {
	c, ok := byID[d.LeadRef()]
	if !ok {
		slog.Warn("subdivide decision references missing cluster, skipping", "ref", d.LeadRef())
		return
	}

	if len(c.Queries) < s.MinClusterSize {
		trash := s.EnsureTrashCategory()
		trash.Queries = append(trash.Queries, c.Queries...)
		trash.Samples = append(trash.Samples, c.Samples...)
		slog.Info("subdivide below min_cluster_size, routed to trash", "cluster", c.ID, "queries", len(c.Queries))
		return
	}

	s.Tasks.Push(cluster.Task{Queries: c.Queries, K: d.KValue})
	slog.Info("subdivide enqueued new task", "cluster", c.ID, "k", d.KValue)
}

const categoryIDFormat = "CAT-%03d"

func nextCategoryID(s *cluster.State) string {
	return fmt.Sprintf(categoryIDFormat, s.Categories.CreatedCount()+1)
}

// maxSamplesCap mirrors the partitioner's per-cluster sample cap so
// merged categories stay bounded (spec.md §4.4 "samples is the
// concatenation truncated to max_samples_per_cluster").
func maxSamplesCap(s *cluster.State) int {
	if s.MaxSamplesPerCluster > 0 {
		return s.MaxSamplesPerCluster
	}
	return 10
}
