package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/Studio/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L1
	l1.data["plan.t1"] = []byte("val1")

	val, found, err := c.Get(ctx, "plan.t1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "val1" {
		t.Fatalf("expected val1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L2
	l2.data["plan.t2"] = []byte("val2")

	val, found, err := c.Get(ctx, "plan.t2")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != "val2" {
		t.Fatalf("expected val2, got %s", val)
	}

	// Verify backfill into L1
	l1Val, ok := l1.data["plan.t2"]
	if !ok {
		t.Fatal("expected L1 backfill")
	}
	if string(l1Val) != "val2" {
		t.Fatalf("expected backfilled val2, got %s", l1Val)
	}
}

func TestTiered_Miss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "plan.t3", []byte("val3"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["plan.t3"]; !ok {
		t.Fatal("expected plan.t3 in L1")
	}
	if _, ok := l2.data["plan.t3"]; !ok {
		t.Fatal("expected plan.t3 in L2")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["plan.t4"] = []byte("val4")
	l2.data["plan.t4"] = []byte("val4")

	if err := c.Delete(ctx, "plan.t4"); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["plan.t4"]; ok {
		t.Fatal("expected plan.t4 deleted from L1")
	}
	if _, ok := l2.data["plan.t4"]; ok {
		t.Fatal("expected plan.t4 deleted from L2")
	}
}

// downCache fails every call, standing in for an unreachable NATS KV.
type downCache struct{}

var errDown = errors.New("kv unavailable")

func (downCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, errDown }
func (downCache) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (downCache) Delete(context.Context, string) error                     { return errDown }

func TestTiered_L2DownDegradesToMiss(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, downCache{}, 5*time.Minute)
	ctx := context.Background()

	if _, found, err := c.Get(ctx, "plan.t5"); err != nil || found {
		t.Fatalf("expected silent miss, got found=%v err=%v", found, err)
	}
	if err := c.Set(ctx, "plan.t5", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set should tolerate L2 failure, got %v", err)
	}
	if _, ok := l1.data["plan.t5"]; !ok {
		t.Fatal("expected L1 write despite L2 failure")
	}
	if err := c.Delete(ctx, "plan.t5"); !errors.Is(err, errDown) {
		t.Errorf("delete must surface L2 failure, got %v", err)
	}
}

func TestTiered_L1TTLCapped(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, newMemCache(), time.Minute)

	_ = c.Set(context.Background(), "plan.t6", []byte("v"), time.Hour)
	if got := l1.ttls["plan.t6"]; got != time.Minute {
		t.Errorf("L1 ttl = %v, want capped at 1m", got)
	}
}
