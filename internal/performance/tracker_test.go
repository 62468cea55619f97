package performance

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestTracker_Get_UnknownAgentHasNeutralAccuracy(t *testing.T) {
	tr := NewTracker()
	m := tr.Get("unknown-agent")

	if m.AccuracyScore != NeutralAccuracy {
		t.Errorf("AccuracyScore = %v, want %v for an unseen agent", m.AccuracyScore, NeutralAccuracy)
	}
	if m.TotalAnalyses != 0 {
		t.Errorf("TotalAnalyses = %d, want 0", m.TotalAnalyses)
	}
}

func TestTracker_RecordExecutionWithConfidence_CumulativeMean(t *testing.T) {
	tr := NewTracker()

	tr.RecordExecutionWithConfidence("agent-a", true, 100*time.Millisecond, 0.8, true)
	tr.RecordExecutionWithConfidence("agent-a", true, 200*time.Millisecond, 0.6, true)

	m := tr.Get("agent-a")
	if m.TotalAnalyses != 2 {
		t.Errorf("TotalAnalyses = %d, want 2", m.TotalAnalyses)
	}
	if math.Abs(m.AverageConfidence-0.7) > 1e-9 {
		t.Errorf("AverageConfidence = %v, want 0.7", m.AverageConfidence)
	}
	if m.AverageExecutionTime != 150*time.Millisecond {
		t.Errorf("AverageExecutionTime = %v, want 150ms", m.AverageExecutionTime)
	}
}

func TestTracker_RecordExecution_TracksErrorRate(t *testing.T) {
	tr := NewTracker()

	tr.RecordExecution("agent-b", true, time.Millisecond)
	tr.RecordExecution("agent-b", false, time.Millisecond)
	tr.RecordExecution("agent-b", false, time.Millisecond)

	m := tr.Get("agent-b")
	if m.TotalAnalyses != 3 {
		t.Fatalf("TotalAnalyses = %d, want 3", m.TotalAnalyses)
	}
	want := 2.0 / 3.0
	if math.Abs(m.ErrorRate-want) > 1e-9 {
		t.Errorf("ErrorRate = %v, want %v", m.ErrorRate, want)
	}
}

func TestTracker_EvaluateOnResolution_PerfectCalibration(t *testing.T) {
	tr := NewTracker()

	var accuracy float64
	for i := 0; i < 200; i++ {
		accuracy = tr.EvaluateOnResolution("agent-c", 1.0, true)
	}

	if math.Abs(accuracy-1.0) > 1e-6 {
		t.Errorf("accuracy after repeated perfect predictions = %v, want ~1.0", accuracy)
	}
}

func TestTracker_EvaluateOnResolution_AntiCalibration(t *testing.T) {
	tr := NewTracker()

	var accuracy float64
	for i := 0; i < 200; i++ {
		accuracy = tr.EvaluateOnResolution("agent-d", 1.0, false)
	}

	if math.Abs(accuracy-0.0) > 1e-6 {
		t.Errorf("accuracy after repeated anti-calibrated predictions = %v, want ~0.0", accuracy)
	}
}

func TestTracker_Accuracy(t *testing.T) {
	tr := NewTracker()
	tr.RecordExecution("agent-e", true, time.Millisecond)
	tr.EvaluateOnResolution("agent-e", 0.9, true)

	accuracy, n := tr.Accuracy("agent-e")
	if n != 1 {
		t.Errorf("sample size = %d, want 1", n)
	}
	if accuracy <= NeutralAccuracy {
		t.Errorf("accuracy = %v, want improved over neutral %v after a correct prediction", accuracy, NeutralAccuracy)
	}
}

func TestTracker_Leaderboard_FiltersAndSorts(t *testing.T) {
	tr := NewTracker()

	tr.RecordExecution("low-sample", true, time.Millisecond)

	for i := 0; i < 5; i++ {
		tr.RecordExecution("strong", true, time.Millisecond)
		tr.RecordExecution("weak", true, time.Millisecond)
	}
	tr.EvaluateOnResolution("strong", 0.95, true)
	tr.EvaluateOnResolution("weak", 0.95, false)

	board := tr.Leaderboard(5)

	if len(board) != 2 {
		t.Fatalf("Leaderboard(5) returned %d agents, want 2 (low-sample excluded)", len(board))
	}
	if board[0].AgentName != "strong" {
		t.Errorf("Leaderboard()[0] = %s, want \"strong\" ranked first", board[0].AgentName)
	}
}

func TestTracker_Persist_NoAgentsSkipsPool(t *testing.T) {
	tr := NewTracker()

	// With no tracked agents the upsert loop never executes, so a nil pool
	// must not be dereferenced.
	if err := tr.Persist(context.Background(), nil); err != nil {
		t.Errorf("Persist() with no agents = %v, want nil", err)
	}
}
