package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

const policyKeyPrefix = "policy_context"

// policyContextCache stores the per-session policy document snapshot.
type policyContextCache struct {
	store   *blobStore
	maxDocs int
}

// NewPolicyContextCache builds a PolicyContextCache. redisClient may be nil
// for a pure in-memory cache. maxDocs caps how many chunks one session may
// pin; overflow is truncated on Set.
func NewPolicyContextCache(redisClient *redis.Client, ttl, sweepInterval time.Duration, maxDocs int) services.PolicyContextCache {
	store := newBlobStore(policyKeyPrefix, ttl, redisClient)
	store.startSweep(sweepInterval)
	return &policyContextCache{store: store, maxDocs: maxDocs}
}

func (c *policyContextCache) Set(ctx context.Context, sessionID string, pc models.PolicyContext) error {
	if c.maxDocs > 0 && len(pc.Documents) > c.maxDocs {
		pc.Documents = pc.Documents[:c.maxDocs]
	}
	if pc.CachedAt.IsZero() {
		pc.CachedAt = time.Now()
	}

	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal policy context: %w", err)
	}
	return c.store.set(ctx, sessionID, data)
}

func (c *policyContextCache) Get(ctx context.Context, sessionID string) (models.PolicyContext, bool, error) {
	data, ok, err := c.store.get(ctx, sessionID)
	if err != nil || !ok {
		return models.PolicyContext{}, false, err
	}

	var pc models.PolicyContext
	if err := json.Unmarshal(data, &pc); err != nil {
		_ = c.store.del(ctx, sessionID)
		return models.PolicyContext{}, false, nil
	}
	return pc, true, nil
}

func (c *policyContextCache) Clear(ctx context.Context, sessionID string) error {
	return c.store.del(ctx, sessionID)
}
