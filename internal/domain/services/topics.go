package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
)

const (
	// DefaultTopicLimit is the number of topics returned by SuggestTopics
	// when the caller does not ask for a specific count.
	DefaultTopicLimit = 8
	// clusterIterations bounds Lloyd's algorithm; assignments converge
	// well before this on journal-sized corpora.
	clusterIterations = 25
	// mainTopicsPerCluster is how many topic labels summarize a cluster.
	mainTopicsPerCluster = 3
)

// TopicService groups facts into topics, either by their stored labels or
// by unsupervised clustering over their embeddings.
type TopicService struct {
	store ports.Store
}

// NewTopicService creates a new topic service.
func NewTopicService(store ports.Store) *TopicService {
	return &TopicService{store: store}
}

// SuggestTopics returns up to limit topics ranked by recency of latest
// mention, then by fact count. Facts without a topic label are skipped.
func (s *TopicService) SuggestTopics(ctx context.Context, limit int) ([]entities.Topic, error) {
	if limit <= 0 {
		limit = DefaultTopicLimit
	}
	topics, err := s.store.RecentTopics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	return topics, nil
}

// ClusterFacts groups facts by k-means over their embeddings. When topic is
// non-empty only facts under that label are clustered, otherwise all facts
// are. nClusters is clamped to [1, fact count]; clustering an empty fact
// set returns no clusters. Results are deterministic for a given fact set.
func (s *TopicService) ClusterFacts(ctx context.Context, topic string, nClusters int) ([]entities.FactCluster, error) {
	var (
		facts []entities.Fact
		err   error
	)
	if topic != "" {
		facts, err = s.store.FactsByTopic(ctx, topic, 0)
	} else {
		facts, err = s.store.RecentFacts(ctx, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("loading facts: %w", err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	if nClusters < 1 {
		nClusters = 1
	}
	if nClusters > len(facts) {
		nClusters = len(facts)
	}

	// Stable input order makes initialization reproducible regardless of
	// how the store returned the rows.
	sort.Slice(facts, func(i, j int) bool { return facts[i].ID < facts[j].ID })

	assignments := kmeans(facts, nClusters)

	clusters := make([]entities.FactCluster, nClusters)
	for i := range clusters {
		clusters[i].ID = i
	}
	for i, f := range facts {
		c := &clusters[assignments[i]]
		c.Facts = append(c.Facts, f)
	}

	// Drop clusters that lost all members during iteration.
	out := clusters[:0]
	for _, c := range clusters {
		if len(c.Facts) == 0 {
			continue
		}
		c.ID = len(out)
		c.MainTopics = mainTopics(c.Facts, mainTopicsPerCluster)
		out = append(out, c)
	}
	return out, nil
}

// kmeans runs Lloyd's algorithm with farthest-first initialization and
// returns a cluster index per fact. Initialization is deterministic, so
// clustering the same fact set always yields the same groups. Facts without
// embeddings are assigned to cluster 0.
func kmeans(facts []entities.Fact, k int) []int {
	assignments := make([]int, len(facts))
	if k <= 1 {
		return assignments
	}

	dim := 0
	for _, f := range facts {
		if len(f.Embedding) > 0 {
			dim = len(f.Embedding)
			break
		}
	}
	if dim == 0 {
		return assignments
	}

	centroids := initCentroids(facts, k, dim)

	for iter := 0; iter < clusterIterations; iter++ {
		changed := false
		for i, f := range facts {
			if len(f.Embedding) != dim {
				continue
			}
			best, bestDist := 0, sqDistance(f.Embedding, centroids[0])
			for c := 1; c < k; c++ {
				if d := sqDistance(f.Embedding, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, f := range facts {
			if len(f.Embedding) != dim {
				continue
			}
			c := assignments[i]
			counts[c]++
			for d, v := range f.Embedding {
				sums[c][d] += float64(v)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
			}
			centroids[c] = sums[c]
		}
	}
	return assignments
}

// initCentroids seeds k centroids farthest-first: the first fact starts,
// then each next centroid is the fact farthest from its nearest centroid.
func initCentroids(facts []entities.Fact, k, dim int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, toFloat64(facts[0].Embedding, dim))

	for len(centroids) < k {
		bestIdx, bestDist := 0, -1.0
		for i, f := range facts {
			if len(f.Embedding) != dim {
				continue
			}
			nearest := sqDistance(f.Embedding, centroids[0])
			for _, c := range centroids[1:] {
				if d := sqDistance(f.Embedding, c); d < nearest {
					nearest = d
				}
			}
			if nearest > bestDist {
				bestIdx, bestDist = i, nearest
			}
		}
		centroids = append(centroids, toFloat64(facts[bestIdx].Embedding, dim))
	}
	return centroids
}

// mainTopics returns the most common non-empty topic labels in the facts,
// most common first, label order as tie-break.
func mainTopics(facts []entities.Fact, limit int) []string {
	counts := map[string]int{}
	for _, f := range facts {
		if f.Topic != "" {
			counts[f.Topic]++
		}
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > limit {
		labels = labels[:limit]
	}
	return labels
}

func toFloat64(v []float32, dim int) []float64 {
	out := make([]float64, dim)
	for i := 0; i < dim && i < len(v); i++ {
		out[i] = float64(v[i])
	}
	return out
}

func sqDistance(v []float32, centroid []float64) float64 {
	var sum float64
	for i := range centroid {
		d := float64(v[i]) - centroid[i]
		sum += d * d
	}
	return sum
}
