package externaldata

import (
	"context"
	"errors"
	"testing"
	"time"
)

func factoryReturning(payload string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		return []byte(payload), nil
	}
}

func TestWarmer_Run_PopulatesCache(t *testing.T) {
	cache, err := NewCache(10, EvictionLRU, false, 0)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	w := NewWarmer(cache, 5, 0)
	results := w.Run(context.Background(), []WarmRequest{
		{Key: "a", Factory: factoryReturning("1"), TTL: time.Minute, StaleTTL: time.Minute},
	}, time.Now())

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("Run() results = %+v, want one successful result", results)
	}

	payload, _, ok := cache.Get("a", time.Now())
	if !ok || string(payload) != "1" {
		t.Errorf("cache.Get(\"a\") = (%s, %v), want (\"1\", true)", payload, ok)
	}
}

func TestWarmer_Run_RecordsFactoryFailure(t *testing.T) {
	cache, _ := NewCache(10, EvictionLRU, false, 0)
	w := NewWarmer(cache, 5, 0)

	wantErr := errors.New("fetch failed")
	results := w.Run(context.Background(), []WarmRequest{
		{Key: "a", Factory: func(context.Context) ([]byte, error) { return nil, wantErr }},
	}, time.Now())

	if len(results) != 1 || results[0].Success || !errors.Is(results[0].Err, wantErr) {
		t.Errorf("Run() results = %+v, want one failed result wrapping %v", results, wantErr)
	}
}

func TestWarmer_Run_RespectsDependencyOrder(t *testing.T) {
	cache, _ := NewCache(10, EvictionLRU, false, 0)
	w := NewWarmer(cache, 5, 0)

	var order []string
	track := func(key string) func(context.Context) ([]byte, error) {
		return func(context.Context) ([]byte, error) {
			order = append(order, key)
			return []byte(key), nil
		}
	}

	w.Run(context.Background(), []WarmRequest{
		{Key: "child", Factory: track("child"), Dependencies: []string{"parent"}},
		{Key: "parent", Factory: track("parent")},
	}, time.Now())

	if len(order) != 2 || order[0] != "parent" || order[1] != "child" {
		t.Errorf("execution order = %v, want [parent child]", order)
	}
}

func TestWarmer_Run_SkipsCyclicRequests(t *testing.T) {
	cache, _ := NewCache(10, EvictionLRU, false, 0)
	w := NewWarmer(cache, 5, 0)

	results := w.Run(context.Background(), []WarmRequest{
		{Key: "a", Factory: factoryReturning("1"), Dependencies: []string{"b"}},
		{Key: "b", Factory: factoryReturning("2"), Dependencies: []string{"a"}},
	}, time.Now())

	if len(results) != 0 {
		t.Errorf("Run() results = %+v, want none for a cyclic dependency pair", results)
	}
}

func TestWarmer_Run_OrdersByPriorityWithinLayer(t *testing.T) {
	cache, _ := NewCache(10, EvictionLRU, false, 0)
	w := NewWarmer(cache, 5, 0)

	var order []string
	track := func(key string) func(context.Context) ([]byte, error) {
		return func(context.Context) ([]byte, error) {
			order = append(order, key)
			return []byte(key), nil
		}
	}

	w.Run(context.Background(), []WarmRequest{
		{Key: "low", Factory: track("low"), Priority: 1},
		{Key: "high", Factory: track("high"), Priority: 10},
	}, time.Now())

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("execution order = %v, want [high low]", order)
	}
}

func TestNewWarmer_DefaultsBatchSize(t *testing.T) {
	w := NewWarmer(nil, 0, time.Second)
	if w.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want default 10", w.BatchSize)
	}
}
