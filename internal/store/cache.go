package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harooos/tdrcluster/internal/cluster"
)

const decisionCacheTTL = 24 * time.Hour

// DecisionCache caches a reviewer decision set keyed by the exact content
// of the batch it was computed for, so re-running a batch that produced an
// invalid response partway through a retry sequence never repeats a valid
// LLM call that was already paid for.
type DecisionCache struct {
	rdb *redis.Client
}

func NewDecisionCache(rdb *redis.Client) *DecisionCache {
	return &DecisionCache{rdb: rdb}
}

// Key hashes the cluster ids and their sample contents, mirroring the
// teacher's sha256-of-request cache key convention.
func Key(batch []*cluster.Cluster) string {
	var b strings.Builder
	sorted := make([]*cluster.Cluster, len(batch))
	copy(sorted, batch)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, c := range sorted {
		b.WriteString(c.ID)
		b.WriteByte(';')
	}
	for _, c := range sorted {
		for _, s := range c.Samples {
			b.WriteString(s)
			b.WriteByte('|')
		}
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("decisions:%s", hex.EncodeToString(hash[:])[:16])
}

type cachedDecision struct {
	ClusterRefs       []string `json:"cluster_refs"`
	Action            string   `json:"action"`
	Description       string   `json:"description,omitempty"`
	TargetID          string   `json:"target_id,omitempty"`
	DescriptionUpdate string   `json:"description_update,omitempty"`
	KValue            int      `json:"k_value,omitempty"`
}

func (c *DecisionCache) Get(ctx context.Context, key string) []*cluster.Decision {
	if c == nil || c.rdb == nil {
		return nil
	}

	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var cached []cachedDecision
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		slog.Debug("failed to unmarshal cached decisions", "error", err)
		return nil
	}

	decisions := make([]*cluster.Decision, len(cached))
	for i, d := range cached {
		decisions[i] = &cluster.Decision{
			ClusterRefs:       d.ClusterRefs,
			Action:            cluster.Action(d.Action),
			Description:       d.Description,
			TargetID:          d.TargetID,
			DescriptionUpdate: d.DescriptionUpdate,
			KValue:            d.KValue,
		}
	}
	return decisions
}

func (c *DecisionCache) Set(ctx context.Context, key string, decisions []*cluster.Decision) {
	if c == nil || c.rdb == nil {
		return
	}

	cached := make([]cachedDecision, len(decisions))
	for i, d := range decisions {
		cached[i] = cachedDecision{
			ClusterRefs:       d.ClusterRefs,
			Action:            string(d.Action),
			Description:       d.Description,
			TargetID:          d.TargetID,
			DescriptionUpdate: d.DescriptionUpdate,
			KValue:            d.KValue,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		slog.Debug("failed to marshal decisions for caching", "error", err)
		return
	}

	if err := c.rdb.Set(ctx, key, data, decisionCacheTTL).Err(); err != nil {
		slog.Debug("failed to cache decisions", "error", err)
	}
}
