// Package ranker computes the link-authority and term-specificity signals
// the query engine combines into a score.
package ranker

import (
	"github.com/JakeFAU/roosearch/internal/index"
)

const (
	// DefaultIterations is the fixed power-iteration count. Ranks are not
	// checked for convergence; small graphs settle well before this.
	DefaultIterations = 20
	// DefaultDamping is the probability of following a link.
	DefaultDamping = 0.85
)

// PageRank runs synchronous power iteration over g. Every node starts at
// 1/N. Each round a node receives (1-d)/N, plus d times the share of every
// inbound neighbour's rank split over that neighbour's out-degree, plus an
// even share of the rank held by nodes with no outbound edges. The vector
// therefore keeps unit mass, and a graph with no edges sits at 1/N.
func PageRank(g index.Graph, iterations int, damping float64) map[string]float64 {
	n := len(g.Nodes)
	ranks := make(map[string]float64, n)
	if n == 0 {
		return ranks
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if damping < 0 || damping > 1 {
		damping = DefaultDamping
	}

	outDegree := g.OutDegrees()
	nf := float64(n)
	for _, u := range g.Nodes {
		ranks[u] = 1 / nf
	}
	for i := 0; i < iterations; i++ {
		dangling := 0.0
		for _, u := range g.Nodes {
			if outDegree[u] == 0 {
				dangling += ranks[u]
			}
		}
		base := (1-damping)/nf + damping*dangling/nf
		next := make(map[string]float64, n)
		for _, u := range g.Nodes {
			sum := 0.0
			for _, v := range g.Inbound[u] {
				sum += ranks[v] / float64(outDegree[v])
			}
			next[u] = base + damping*sum
		}
		ranks = next
	}
	return ranks
}

// Recompute replaces the store's rank vector with a fresh PageRank run. The
// store is held exclusively for the duration, so no index write lands
// mid-computation.
func Recompute(store *index.Store, iterations int, damping float64) {
	store.UpdateRanks(func(g index.Graph) map[string]float64 {
		return PageRank(g, iterations, damping)
	})
}
