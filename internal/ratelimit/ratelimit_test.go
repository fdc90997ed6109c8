package ratelimit

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Runs only against a real Redis, e.g. REDIS_TEST_URL=redis://localhost:6379/15.
func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	ctx := context.Background()
	l, err := OpenRedis(ctx, url, 3)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	key := "test:" + uuid.NewString()
	t.Cleanup(func() { l.Reset(context.Background(), key) })

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, key)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Error("expected fourth request within a minute to be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", res.RetryAfter)
	}

	other, err := l.Allow(ctx, key+":other")
	if err != nil {
		t.Fatalf("Allow other key: %v", err)
	}
	if !other.Allowed {
		t.Error("expected a different key to be counted separately")
	}
	l.Reset(ctx, key+":other")
}

func TestOpenRedisRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenRedis(ctx, "redis://localhost:6379/0", 0); err == nil {
		t.Error("expected error for zero rate")
	}
	if _, err := OpenRedis(ctx, "not a url", 5); err == nil {
		t.Error("expected error for malformed url")
	}
}
