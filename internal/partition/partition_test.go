package partition

import (
	"testing"

	"github.com/harooos/tdrcluster/internal/cluster"
)

func makeQueries(n int, dims int, shift float64) []cluster.Query {
	out := make([]cluster.Query, n)
	for i := 0; i < n; i++ {
		emb := make([]float64, dims)
		for d := range emb {
			emb[d] = shift
		}
		out[i] = cluster.Query{ID: "q", Content: "content", Embedding: emb}
	}
	return out
}

func TestRunProducesNonEmptyClustersOnly(t *testing.T) {
	s := cluster.NewState(nil, 1, "d", 1)

	var queries []cluster.Query
	queries = append(queries, makeQueries(10, 4, -10)...)
	queries = append(queries, makeQueries(10, 4, 10)...)

	clusters := Run(s, queries, 2, 10)

	if len(clusters) == 0 {
		t.Fatal("Run() produced no clusters")
	}
	total := 0
	for _, c := range clusters {
		if len(c.Queries) == 0 {
			t.Errorf("cluster %s is empty", c.ID)
		}
		total += len(c.Queries)
	}
	if total != len(queries) {
		t.Errorf("total clustered queries = %d, want %d (query conservation)", total, len(queries))
	}
}

func TestRunDegenerateKReducedToQueryCount(t *testing.T) {
	s := cluster.NewState(nil, 1, "d", 1)
	queries := makeQueries(3, 4, 1)

	clusters := Run(s, queries, 50, 10)

	total := 0
	for _, c := range clusters {
		total += len(c.Queries)
	}
	if total != 3 {
		t.Errorf("total clustered queries = %d, want 3", total)
	}
	if len(clusters) > 3 {
		t.Errorf("got %d clusters from 3 queries, want at most 3", len(clusters))
	}
}

func TestRunEmptyQueries(t *testing.T) {
	s := cluster.NewState(nil, 1, "d", 1)
	if got := Run(s, nil, 5, 10); got != nil {
		t.Errorf("Run() on empty input = %v, want nil", got)
	}
}

func TestSampleContentsCapsAtMax(t *testing.T) {
	queries := makeQueries(20, 2, 1)
	samples := sampleContents(queries, 5)
	if len(samples) != 5 {
		t.Errorf("sampleContents() returned %d samples, want 5", len(samples))
	}
}

func TestSampleContentsBelowCapReturnsAll(t *testing.T) {
	queries := makeQueries(3, 2, 1)
	samples := sampleContents(queries, 10)
	if len(samples) != 3 {
		t.Errorf("sampleContents() returned %d samples, want 3", len(samples))
	}
}

func TestStandardizeZeroVariance(t *testing.T) {
	m := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	out := standardize(m)
	for _, row := range out {
		if row[0] != 0 {
			t.Errorf("constant column should standardize to 0, got %v", row[0])
		}
	}
}

func TestRoundRobinLabelsCoverAllClusters(t *testing.T) {
	labels := roundRobinLabels(7, 3)
	seen := map[int]bool{}
	for _, l := range labels {
		seen[l] = true
	}
	if len(seen) != 3 {
		t.Errorf("roundRobinLabels should touch all 3 clusters, got %v", seen)
	}
}
