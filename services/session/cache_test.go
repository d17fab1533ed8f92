package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

// backends runs a subtest against both the in-memory and Redis backends.
func backends(t *testing.T, fn func(t *testing.T, client *redis.Client)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, nil)
	})
	t.Run("redis", func(t *testing.T) {
		client, cleanup := setupTestRedis(t)
		defer cleanup()
		fn(t, client)
	})
}

func newTestChatCache(client *redis.Client, maxTurns int) services.ChatCache {
	return NewChatCache(client, time.Hour, time.Hour, maxTurns)
}

func TestChatCacheAppendAndHistory(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 25)
		ctx := context.Background()

		require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{Role: models.RoleUser, Content: "지원 대상이 누구인가요?"}))
		require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{Role: models.RoleAssistant, Content: "청년 창업가입니다."}))

		history, err := cache.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.RoleUser, history[0].Role)
		assert.Equal(t, models.RoleAssistant, history[1].Role)
		assert.Equal(t, "지원 대상이 누구인가요?", history[0].Content)
	})
}

func TestChatCacheHistoryBound(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 3) // 6 messages max
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{
				Role:    models.RoleUser,
				Content: fmt.Sprintf("msg-%d", i),
			}))
		}

		history, err := cache.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 6)
		// Oldest evicted first; remaining are msg-4..msg-9 in order.
		assert.Equal(t, "msg-4", history[0].Content)
		assert.Equal(t, "msg-9", history[5].Content)
	})
}

func TestChatCacheUnknownSessionEmpty(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 25)
		history, err := cache.History(context.Background(), "nope")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestChatCacheHistoryReturnsCopy(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 25)
		ctx := context.Background()

		require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{Role: models.RoleUser, Content: "original"}))

		first, err := cache.History(ctx, "s1")
		require.NoError(t, err)
		first[0].Content = "mutated"

		second, err := cache.History(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "original", second[0].Content)
	})
}

func TestChatCacheClearIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 25)
		ctx := context.Background()

		require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{Role: models.RoleUser, Content: "hi"}))
		require.NoError(t, cache.Clear(ctx, "s1"))
		require.NoError(t, cache.Clear(ctx, "s1"))

		history, err := cache.History(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestChatCacheSessionIsolation(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := newTestChatCache(client, 25)
		ctx := context.Background()

		require.NoError(t, cache.Append(ctx, "s1", models.ChatMessage{Role: models.RoleUser, Content: "one"}))
		require.NoError(t, cache.Append(ctx, "s2", models.ChatMessage{Role: models.RoleUser, Content: "two"}))
		require.NoError(t, cache.Clear(ctx, "s1"))

		h2, err := cache.History(ctx, "s2")
		require.NoError(t, err)
		require.Len(t, h2, 1)
		assert.Equal(t, "two", h2[0].Content)
	})
}

func samplePolicyContext() models.PolicyContext {
	return models.PolicyContext{
		PolicyID: 42,
		PolicyInfo: models.PolicyInfo{
			PolicyID:    42,
			ProgramName: "청년 창업 지원 사업",
			ApplyTarget: "만 39세 이하 예비 창업자",
		},
		Documents: []models.DocumentChunk{
			{ChunkID: "42-0", PolicyID: 42, ChunkIndex: 0, DocType: "overview", Content: "사업 개요"},
			{ChunkID: "42-1", PolicyID: 42, ChunkIndex: 1, DocType: "support", Content: "지원 내용"},
		},
		CachedAt: time.Now(),
	}
}

func TestPolicyContextCacheSetGet(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := NewPolicyContextCache(client, time.Hour, time.Hour, 500)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "s1", samplePolicyContext()))

		pc, ok, err := cache.Get(ctx, "s1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 42, pc.PolicyID)
		assert.Equal(t, "청년 창업 지원 사업", pc.PolicyInfo.ProgramName)
		assert.Len(t, pc.Documents, 2)
	})
}

func TestPolicyContextCacheMiss(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := NewPolicyContextCache(client, time.Hour, time.Hour, 500)

		pc, ok, err := cache.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, pc.PolicyID)
	})
}

func TestPolicyContextCacheDocCap(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := NewPolicyContextCache(client, time.Hour, time.Hour, 3)
		ctx := context.Background()

		pc := samplePolicyContext()
		for i := 2; i < 10; i++ {
			pc.Documents = append(pc.Documents, models.DocumentChunk{
				ChunkID: fmt.Sprintf("42-%d", i), PolicyID: 42, ChunkIndex: i, Content: "chunk",
			})
		}
		require.NoError(t, cache.Set(ctx, "s1", pc))

		got, ok, err := cache.Get(ctx, "s1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, got.Documents, 3)
	})
}

func TestPolicyContextCacheClear(t *testing.T) {
	backends(t, func(t *testing.T, client *redis.Client) {
		cache := NewPolicyContextCache(client, time.Hour, time.Hour, 500)
		ctx := context.Background()

		require.NoError(t, cache.Set(ctx, "s1", samplePolicyContext()))
		require.NoError(t, cache.Clear(ctx, "s1"))
		require.NoError(t, cache.Clear(ctx, "s1"))

		_, ok, err := cache.Get(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPolicyContextCacheTTLExpiry(t *testing.T) {
	cache := NewPolicyContextCache(nil, 10*time.Millisecond, time.Hour, 500)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "s1", samplePolicyContext()))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}
