package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ajitpratap0/marketoracle/internal/audit"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	analyzed []string
	failFor  map[string]bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, conditionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[conditionID] {
		return errTest
	}
	f.analyzed = append(f.analyzed, conditionID)
	return nil
}

var errTest = &testError{"analysis failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

type fakeSource struct {
	discovered []string
	resolved   map[string]bool
}

func (f *fakeSource) DiscoverMarkets(_ context.Context, limit int) ([]string, error) {
	if limit >= len(f.discovered) {
		return f.discovered, nil
	}
	return f.discovered[:limit], nil
}

func (f *fakeSource) CheckResolved(_ context.Context, conditionID string) (bool, error) {
	return f.resolved[conditionID], nil
}

type fakeRepository struct {
	active   []string
	resolved []string
}

func (f *fakeRepository) ActiveMarkets(_ context.Context, limit int) ([]string, error) {
	if limit >= len(f.active) {
		return f.active, nil
	}
	return f.active[:limit], nil
}

func (f *fakeRepository) MarkResolved(_ context.Context, conditionID string) error {
	f.resolved = append(f.resolved, conditionID)
	return nil
}

func noopAudit() *audit.Logger {
	return audit.NewLogger(nil, false)
}

func TestMonitor_RunCycle_DiscoversAndAnalyzes(t *testing.T) {
	analyzer := &fakeAnalyzer{failFor: map[string]bool{}}
	source := &fakeSource{discovered: []string{"0x1", "0x2"}, resolved: map[string]bool{}}
	repo := &fakeRepository{}
	quota := NewQuotaManager(100)

	m := NewMonitor(analyzer, source, repo, quota, noopAudit())
	m.runCycle(context.Background())

	if len(analyzer.analyzed) != 2 {
		t.Fatalf("analyzed = %v, want 2 markets", analyzer.analyzed)
	}
	if quota.Remaining() != 98 {
		t.Errorf("quota.Remaining() = %d, want 98", quota.Remaining())
	}
}

func TestMonitor_RunCycle_RefreshesExistingAndRetiresResolved(t *testing.T) {
	analyzer := &fakeAnalyzer{failFor: map[string]bool{}}
	source := &fakeSource{resolved: map[string]bool{"0xold1": true}}
	repo := &fakeRepository{active: []string{"0xold1", "0xold2"}}
	quota := NewQuotaManager(100)

	m := NewMonitor(analyzer, source, repo, quota, noopAudit())
	m.runCycle(context.Background())

	if len(repo.resolved) != 1 || repo.resolved[0] != "0xold1" {
		t.Errorf("repo.resolved = %v, want [0xold1]", repo.resolved)
	}
	if len(analyzer.analyzed) != 1 || analyzer.analyzed[0] != "0xold2" {
		t.Errorf("analyzer.analyzed = %v, want [0xold2]", analyzer.analyzed)
	}
}

func TestMonitor_RunCycle_SkipsWhenQuotaExhausted(t *testing.T) {
	analyzer := &fakeAnalyzer{failFor: map[string]bool{}}
	source := &fakeSource{discovered: []string{"0x1"}}
	repo := &fakeRepository{}
	quota := NewQuotaManager(10)
	quota.Consume(10)

	m := NewMonitor(analyzer, source, repo, quota, noopAudit())
	m.runCycle(context.Background())

	if len(analyzer.analyzed) != 0 {
		t.Errorf("analyzer.analyzed = %v, want no analysis when quota exhausted", analyzer.analyzed)
	}
}

func TestMonitor_RunCycle_SkipsOverlap(t *testing.T) {
	analyzer := &fakeAnalyzer{failFor: map[string]bool{}}
	source := &fakeSource{}
	repo := &fakeRepository{}
	quota := NewQuotaManager(100)

	m := NewMonitor(analyzer, source, repo, quota, noopAudit())
	m.executing.Store(true)
	m.runCycle(context.Background())

	if quota.Remaining() != 100 {
		t.Errorf("quota.Remaining() = %d, want 100 (cycle should have been skipped)", quota.Remaining())
	}
}

func TestMonitor_StartStop(t *testing.T) {
	analyzer := &fakeAnalyzer{failFor: map[string]bool{}}
	source := &fakeSource{}
	repo := &fakeRepository{}
	quota := NewQuotaManager(100)

	m := NewMonitor(analyzer, source, repo, quota, noopAudit())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, time.Hour)
	if !m.Running() {
		t.Fatal("Running() = false, want true after Start()")
	}

	// Starting again while running is a no-op.
	m.Start(ctx, time.Hour)

	m.Stop()
	if m.Running() {
		t.Error("Running() = true, want false after Stop()")
	}
}

func TestMonitor_TriggerNow_NoopWhenNotRunning(t *testing.T) {
	m := NewMonitor(&fakeAnalyzer{}, &fakeSource{}, &fakeRepository{}, NewQuotaManager(1), noopAudit())
	m.TriggerNow() // must not panic or block
}
