package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryStore_FirstCallIsNotDuplicate(t *testing.T) {
	s := newMemoryStore()
	dup, err := s.Check(context.Background(), "evt_001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("first check should not be duplicate")
	}
}

func TestMemoryStore_SecondCallIsDuplicate(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()
	_, _ = s.Check(ctx, "evt_002")

	dup, err := s.Check(ctx, "evt_002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatal("second check should be duplicate")
	}
}

func TestMemoryStore_DifferentEventsAreIndependent(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()
	_, _ = s.Check(ctx, "evt_A")

	dup, _ := s.Check(ctx, "evt_B")
	if dup {
		t.Fatal("different event IDs should not collide")
	}
}

type fakeSetNX struct {
	keys map[string]bool
	ttl  time.Duration
	err  error
}

func (f *fakeSetNX) SetNX(_ context.Context, key string, _ interface{}, exp time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	f.ttl = exp
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func TestRedisStore_Check(t *testing.T) {
	fake := &fakeSetNX{keys: map[string]bool{}}
	s := &redisStore{client: fake, ttl: time.Hour}
	ctx := context.Background()

	if dup, _ := s.Check(ctx, "evt"); dup {
		t.Fatal("first check should not be duplicate")
	}
	if dup, _ := s.Check(ctx, "evt"); !dup {
		t.Fatal("second check should be duplicate")
	}
	if !fake.keys["progress:event:evt"] {
		t.Fatalf("expected namespaced key, got %v", fake.keys)
	}
	if fake.ttl != time.Hour {
		t.Fatalf("expected ttl to be passed through, got %s", fake.ttl)
	}
}

func TestRedisStore_Error(t *testing.T) {
	s := &redisStore{client: &fakeSetNX{err: errors.New("down")}, ttl: time.Hour}
	if _, err := s.Check(context.Background(), "evt"); err == nil {
		t.Fatal("expected redis error to surface")
	}
}

func TestNewStore_FallsBackToMemory(t *testing.T) {
	s, err := NewStore("", nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memoryStore when no backend configured, got %T", s)
	}
}

func TestNewStore_PrefersRedis(t *testing.T) {
	s, err := NewStore("redis://localhost:6379/0", nil, time.Minute, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*redisStore); !ok {
		t.Fatalf("expected redisStore, got %T", s)
	}
}

func TestNewStore_RejectsMemoryInProd(t *testing.T) {
	s, err := NewStore("", nil, 0, true)
	if err == nil {
		t.Fatalf("expected error in production with no backend, got store %T", s)
	}
	if s != nil {
		t.Fatalf("expected nil store, got %T", s)
	}
}
