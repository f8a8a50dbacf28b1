package idempotency

import (
	"context"
	"sync"
	"testing"
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

	dup, err := s.Check(ctx, "evt_B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("different event IDs should not collide")
	}
}

// Exactly one of many concurrent checkers for the same id wins.
func TestMemoryStore_ConcurrentChecks(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			dup, err := s.Check(ctx, "evt_race")
			if err != nil {
				t.Errorf("check: %v", err)
				return
			}
			if !dup {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Fatalf("expected exactly one first delivery, got %d", firsts)
	}
}

func TestMemoryStore_ForgetReleasesMark(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "evt_003")
	if err := s.Forget(ctx, "evt_003"); err != nil {
		t.Fatalf("forget: %v", err)
	}

	dup, err := s.Check(ctx, "evt_003")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("check after forget should not be duplicate")
	}

	if err := s.Forget(ctx, "evt_never_seen"); err != nil {
		t.Fatalf("forgetting an unknown id should not error: %v", err)
	}
}

var (
	_ Store = (*memoryStore)(nil)
	_ Store = (*redisStore)(nil)
	_ Store = (*postgresStore)(nil)
)

// The lazy pool open is shared state; concurrent callers must all observe
// the same initialisation result without racing on the pool field.
func TestPostgresStore_ConcurrentPoolInit(t *testing.T) {
	s := newPostgresStore("not a dsn")
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Check(ctx, "evt_pool"); err == nil {
				t.Error("expected pool init error for invalid DSN")
			}
		}()
	}
	wg.Wait()
}

func TestNewStore_FallsBackToMemory(t *testing.T) {
	s, err := NewStore("", "", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memoryStore when no DSN provided, got %T", s)
	}
}

func TestNewStore_RejectsMemoryInProd(t *testing.T) {
	s, err := NewStore("", "", 0, true)
	if err == nil {
		t.Fatalf("expected error in production with no DSN, got store %T", s)
	}
	if s != nil {
		t.Fatalf("expected nil store, got %T", s)
	}
}
