package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgredis "github.com/hrdatainsights/salary-platform/pkg/redis"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	var calls int
	compute := func() (any, error) {
		calls++
		return map[string]int{"count": 3}, nil
	}
	k := Key{View: "countries"}

	data, cached, err := c.GetOrCompute(ctx, k, compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if cached {
		t.Error("first call should miss")
	}
	if string(data) != `{"count":3}` {
		t.Errorf("data = %s", data)
	}

	data, cached, err = c.GetOrCompute(ctx, k, compute)
	if err != nil || !cached || string(data) != `{"count":3}` {
		t.Errorf("second call = %s, %v, %v", data, cached, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 2 || !s.Enabled {
		t.Errorf("stats = %+v, want 1 hit and 2 misses", s)
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	want := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), Key{View: "x"}, func() (any, error) { return nil, want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestStoreFailureDegradesToCompute(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	data, cached, err := c.GetOrCompute(context.Background(), Key{View: "summary"}, func() (any, error) { return 1, nil })
	if err != nil || cached || string(data) != "1" {
		t.Errorf("got %s, %v, %v", data, cached, err)
	}
}

func TestDisabledCache(t *testing.T) {
	c := New(nil, time.Minute, nil)
	var calls int
	for i := 0; i < 2; i++ {
		if _, cached, err := c.GetOrCompute(context.Background(), Key{View: "v"}, func() (any, error) { calls++; return "x", nil }); err != nil || cached {
			t.Fatalf("GetOrCompute = %v, %v", cached, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if n, err := c.Invalidate(context.Background()); n != 0 || err != nil {
		t.Errorf("Invalidate = %d, %v", n, err)
	}
	if c.Stats().Enabled {
		t.Error("disabled cache reports enabled")
	}
}

func TestSingleflightCollapses(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (any, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), Key{View: "heatmap"}, compute)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = "1"
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.GetOrCompute(ctx, Key{View: "a"}, func() (any, error) { return 1, nil })
	c.GetOrCompute(ctx, Key{View: "b"}, func() (any, error) { return 2, nil })

	n, err := c.Invalidate(ctx)
	if err != nil || n != 2 {
		t.Errorf("Invalidate = %d, %v; want 2", n, err)
	}
	if _, ok := store.data["other:key"]; !ok {
		t.Error("foreign key removed")
	}
}

func TestBuildKeyNormalizesParams(t *testing.T) {
	a := buildKey(Key{View: "Histogram", Params: map[string][]string{"country": {"Spain", "Germany"}, "bins": {"20"}}})
	b := buildKey(Key{View: "histogram", Params: map[string][]string{"bins": {"20"}, "country": {"Germany", "Spain"}}})
	if a != b {
		t.Errorf("equivalent keys differ: %s vs %s", a, b)
	}
	c := buildKey(Key{View: "histogram", Params: map[string][]string{"bins": {"30"}}})
	if a == c {
		t.Error("different params share a key")
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("key %s lacks prefix", a)
	}
}
