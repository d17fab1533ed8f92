package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// blobStore is the shared backend for session caches: JSON blobs keyed by
// session, held in Redis when a client is supplied and in-process otherwise.
// Redis failures fall back to the in-memory map so a cache blip never takes
// a session down.
type blobStore struct {
	prefix string
	ttl    time.Duration

	redis    *redis.Client
	useRedis bool

	mu       sync.RWMutex
	memCache map[string]blobEntry

	stopSweep chan struct{}
	sweepOnce sync.Once
}

type blobEntry struct {
	data      []byte
	expiresAt time.Time
}

func newBlobStore(prefix string, ttl time.Duration, redisClient *redis.Client) *blobStore {
	return &blobStore{
		prefix:    prefix,
		ttl:       ttl,
		redis:     redisClient,
		useRedis:  redisClient != nil,
		memCache:  make(map[string]blobEntry),
		stopSweep: make(chan struct{}),
	}
}

func (s *blobStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

// get returns (nil, false, nil) on a miss.
func (s *blobStore) get(ctx context.Context, sessionID string) ([]byte, bool, error) {
	key := s.key(sessionID)

	if s.useRedis {
		data, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			return data, true, nil
		}
		if err == redis.Nil {
			return nil, false, nil
		}
		// Redis error - fall back to memory cache
	}

	s.mu.RLock()
	entry, exists := s.memCache[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.memCache, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (s *blobStore) set(ctx context.Context, sessionID string, data []byte) error {
	key := s.key(sessionID)

	if s.useRedis {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err == nil {
			return nil
		}
		// Redis error - fall back to memory cache
	}

	s.mu.Lock()
	s.memCache[key] = blobEntry{data: data, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *blobStore) del(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)

	if s.useRedis {
		s.redis.Del(ctx, key)
	}

	s.mu.Lock()
	delete(s.memCache, key)
	s.mu.Unlock()
	return nil
}

// startSweep evicts expired in-memory entries periodically. Redis entries
// expire server-side.
func (s *blobStore) startSweep(interval time.Duration) {
	s.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.sweepExpired()
				case <-s.stopSweep:
					return
				}
			}
		}()
	})
}

func (s *blobStore) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.memCache {
		if now.After(entry.expiresAt) {
			delete(s.memCache, key)
		}
	}
}

func (s *blobStore) close() {
	close(s.stopSweep)
}
