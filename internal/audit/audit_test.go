package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEvent_Defaults(t *testing.T) {
	event := &Event{
		EventType:   EventTypeIngestion,
		Severity:    SeverityInfo,
		ConditionID: "0xabc",
		Stage:       "ingestion",
		Success:     true,
	}

	// ID and timestamp should be set by the logger, not the caller.
	assert.Equal(t, uuid.Nil, event.ID)
	assert.True(t, event.Timestamp.IsZero())
}

func TestLogger_LogWithoutDatabase(t *testing.T) {
	logger := NewLogger(nil, true)

	event := &Event{
		EventType:   EventTypeAgentCompleted,
		Severity:    SeverityInfo,
		ConditionID: "0xabc",
		Stage:       "market_microstructure",
		Success:     true,
	}

	err := logger.Log(context.Background(), event)
	assert.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogger_Disabled(t *testing.T) {
	logger := NewLogger(nil, false)

	event := &Event{
		EventType:   EventTypeIngestion,
		Severity:    SeverityInfo,
		ConditionID: "0xabc",
		Stage:       "ingestion",
		Success:     true,
	}

	err := logger.Log(context.Background(), event)
	assert.NoError(t, err)

	// A disabled logger never touches the event, so ID/Timestamp stay zero.
	assert.Equal(t, uuid.Nil, event.ID)
}

func TestLogger_LogRunAborted(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.Log(context.Background(), &Event{
		EventType:   EventTypeRunAborted,
		Severity:    SeverityError,
		ConditionID: "0xabc",
		Stage:       "fan_out",
		ErrorMsg:    "minimum agent count not met",
	})

	assert.NoError(t, err)
}

func TestLogger_LogMonitorCycle(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.Log(context.Background(), &Event{
		EventType: EventTypeMonitorCycleDropped,
		Severity:  SeverityWarning,
		Stage:     "cycle",
		Metadata:  map[string]interface{}{"reason": "overlap"},
	})

	assert.NoError(t, err)
}

func TestQueryFilters(t *testing.T) {
	filters := &QueryFilters{
		ConditionID: "0xabc",
		EventType:   EventTypeRecommendation,
		StartTime:   time.Now().Add(-24 * time.Hour),
		EndTime:     time.Now(),
		Success:     boolPtr(true),
		Limit:       100,
	}

	assert.Equal(t, EventTypeRecommendation, filters.EventType)
	assert.Equal(t, "0xabc", filters.ConditionID)
	assert.NotNil(t, filters.Success)
	assert.True(t, *filters.Success)
	assert.Equal(t, 100, filters.Limit)
}

func TestEventTypes(t *testing.T) {
	types := []EventType{
		EventTypeIngestion,
		EventTypeMemory,
		EventTypeAgentStarted,
		EventTypeAgentCompleted,
		EventTypeAgentFailed,
		EventTypeAgentTimedOut,
		EventTypeThesis,
		EventTypeCrossExam,
		EventTypeConsensus,
		EventTypeRecommendation,
		EventTypeRunAborted,
		EventTypeMonitorCycleStarted,
		EventTypeMonitorCycleEnded,
		EventTypeMonitorCycleDropped,
		EventTypeQuotaReset,
		EventTypeConfigUpdated,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		assert.False(t, seen[et], "Duplicate event type: %s", et)
		assert.NotEmpty(t, string(et), "Event type should not be empty")
		seen[et] = true
	}
}

func TestSeverityLevels(t *testing.T) {
	severities := []Severity{
		SeverityInfo,
		SeverityWarning,
		SeverityError,
		SeverityCritical,
	}

	for _, s := range severities {
		assert.NotEmpty(t, string(s), "Severity should not be empty")
	}
}

func boolPtr(b bool) *bool {
	return &b
}
