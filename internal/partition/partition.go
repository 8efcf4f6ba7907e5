// Package partition turns one Task (a query set plus a target k) into a
// set of non-empty Clusters via k-means over standardized embeddings
// (spec.md §4.2).
package partition

import (
	"log/slog"
	"math/rand"

	"github.com/harooos/tdrcluster/internal/cluster"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	kmeansSeed       = 42
	kmeansInits      = 10
	kmeansMaxIter    = 300
	kmeansRandomized = true
)

// Run executes one partition step: standardize embeddings, run k-means,
// group queries by assigned centroid, drop empty groups, and sample up to
// maxSamplesPerCluster representative query strings per surviving cluster
// (spec.md §4.2 steps 2-5).
//
// If queries is shorter than k, k is reduced to len(queries) (spec.md §4.2
// step 1 "Degenerate k"). If k-means itself fails to converge to usable
// labels, Run falls back to a deterministic round-robin assignment so the
// loop always makes progress (spec.md §4.2 "Failure", §7).
func Run(s *cluster.State, queries []cluster.Query, k, maxSamplesPerCluster int) []*cluster.Cluster {
	if len(queries) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(queries) {
		slog.Warn("reducing k to query count", "requested_k", k, "queries", len(queries))
		k = len(queries)
	}

	scaled := standardize(embeddingMatrix(queries))

	labels, err := kmeans(scaled, k, kmeansSeed)
	if err != nil {
		slog.Error("kmeans failed, falling back to round-robin partition", "error", err, "k", k)
		labels = roundRobinLabels(len(queries), k)
	}

	grouped := make([][]cluster.Query, k)
	for i, q := range queries {
		label := labels[i]
		grouped[label] = append(grouped[label], q)
	}

	clusters := make([]*cluster.Cluster, 0, k)
	for _, group := range grouped {
		if len(group) == 0 {
			continue
		}
		clusters = append(clusters, &cluster.Cluster{
			ID:      s.NextClusterID(),
			Queries: group,
			Samples: sampleContents(group, maxSamplesPerCluster),
		})
	}

	slog.Info("partition complete", "input_queries", len(queries), "requested_k", k, "clusters", len(clusters))
	return clusters
}

func embeddingMatrix(queries []cluster.Query) [][]float64 {
	m := make([][]float64, len(queries))
	for i, q := range queries {
		m[i] = q.Embedding
	}
	return m
}

// standardize z-scores each embedding dimension independently (mean 0,
// unit variance), matching sklearn's StandardScaler used by the original
// clustering service.
func standardize(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return m
	}
	dims := len(m[0])

	means := make([]float64, dims)
	stds := make([]float64, dims)
	col := make([]float64, len(m))

	for d := 0; d < dims; d++ {
		for i, row := range m {
			col[i] = row[d]
		}
		means[d] = stat.Mean(col, nil)
		stds[d] = stat.StdDev(col, nil)
		if stds[d] == 0 {
			stds[d] = 1
		}
	}

	out := make([][]float64, len(m))
	for i, row := range m {
		scaled := make([]float64, dims)
		for d := 0; d < dims; d++ {
			scaled[d] = (row[d] - means[d]) / stds[d]
		}
		out[i] = scaled
	}
	return out
}

// kmeans runs Lloyd's algorithm with kmeansInits random restarts, keeping
// the lowest-inertia result, mirroring scikit-learn's
// KMeans(random_state=42, n_init=10, max_iter=300) defaults used by the
// original clustering service.
func kmeans(points [][]float64, k int, seed int64) ([]int, error) {
	rng := rand.New(rand.NewSource(seed))

	var bestLabels []int
	bestInertia := -1.0

	for attempt := 0; attempt < kmeansInits; attempt++ {
		labels, inertia := runLloyd(points, k, rng)
		if bestInertia < 0 || inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}
	return bestLabels, nil
}

func runLloyd(points [][]float64, k int, rng *rand.Rand) ([]int, float64) {
	n := len(points)
	dims := len(points[0])

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), points[idx]...)
	}

	labels := make([]int, n)

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, sqDist(p, centroids[0])
			for c := 1; c < k; c++ {
				if d := sqDist(p, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			c := labels[i]
			floats.Add(sums[c], p)
			counts[c]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // keep previous centroid for an emptied cluster
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return labels, inertia
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func roundRobinLabels(n, k int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i % k
	}
	return labels
}

func sampleContents(queries []cluster.Query, maxSamples int) []string {
	if len(queries) <= maxSamples {
		out := make([]string, len(queries))
		for i, q := range queries {
			out[i] = q.Content
		}
		return out
	}

	idx := rand.Perm(len(queries))[:maxSamples]
	out := make([]string, maxSamples)
	for i, j := range idx {
		out[i] = queries[j].Content
	}
	return out
}
