// Package loop drives the partition -> review -> dispatch control loop
// described in spec.md §4.1 until the task queue drains or the recursion
// cap is reached.
package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harooos/tdrcluster/internal/cluster"
	"github.com/harooos/tdrcluster/internal/dispatch"
	"github.com/harooos/tdrcluster/internal/partition"
	"github.com/harooos/tdrcluster/internal/review"
)

// Reviewer is the subset of review.Reviewer the loop depends on, kept as
// an interface so the driver can be exercised with a fake in tests.
type Reviewer interface {
	Review(ctx context.Context, categories *cluster.CategoryMap, batch []*cluster.Cluster) ([]*cluster.Decision, error)
}

var _ Reviewer = (*review.Reviewer)(nil)

// Params configures one run (spec.md §6 "Configuration surface").
type Params struct {
	InitialK             int
	MaxSamplesPerCluster int
	RecursionLimit       int
}

// Run executes `run(initial_queries, initial_k, dataset_name) -> final
// State` (spec.md §4.1 "Contract"). It initializes state with one root
// task, computes min_cluster_size from minClusterSizeFor(total_queries),
// then iterates partition -> review -> dispatch until the task queue is
// empty or the recursion cap is reached.
func Run(ctx context.Context, queries []cluster.Query, datasetName string, minClusterSizeFor func(int) int, reviewer Reviewer, p Params) (*cluster.State, error) {
	total := len(queries)
	minClusterSize := minClusterSizeFor(total)

	s := cluster.NewState(queries, p.InitialK, datasetName, minClusterSize)
	s.MaxSamplesPerCluster = p.MaxSamplesPerCluster

	iterations := 0
	for !s.Tasks.Empty() {
		if iterations >= p.RecursionLimit {
			slog.Warn("recursion cap reached, terminating with partial state", "cap", p.RecursionLimit, "tasks_remaining", s.Tasks.Len())
			return s, nil
		}
		iterations++

		task, ok := s.Tasks.Pop()
		if !ok {
			break
		}

		s.Batch = partition.Run(s, task.Queries, task.K, p.MaxSamplesPerCluster)
		if len(s.Batch) == 0 {
			continue
		}

		decisions, err := reviewer.Review(ctx, s.Categories, s.Batch)
		if err != nil {
			return s, fmt.Errorf("reviewer stage failed on iteration %d: %w", iterations, err)
		}

		dispatch.Apply(s, s.Batch, decisions)
	}

	slog.Info("run complete", "iterations", iterations, "categories", s.Categories.Len())
	return s, nil
}
