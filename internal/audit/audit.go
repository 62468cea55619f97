// Package audit persists the append-only trail of a graph run: one entry per
// node execution, in execution order, queryable by conditionId for later
// review.
package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/metrics"
)

// EventType identifies what stage of a run (or the monitor around it)
// produced an audit entry.
type EventType string

const (
	EventTypeIngestion      EventType = "INGESTION"
	EventTypeMemory         EventType = "MEMORY_RETRIEVAL"
	EventTypeAgentStarted   EventType = "AGENT_STARTED"
	EventTypeAgentCompleted EventType = "AGENT_COMPLETED"
	EventTypeAgentFailed    EventType = "AGENT_FAILED"
	EventTypeAgentTimedOut  EventType = "AGENT_TIMED_OUT"
	EventTypeThesis         EventType = "THESIS"
	EventTypeCrossExam      EventType = "CROSS_EXAMINATION"
	EventTypeConsensus      EventType = "CONSENSUS"
	EventTypeRecommendation EventType = "RECOMMENDATION"
	EventTypeRunAborted     EventType = "RUN_ABORTED"

	EventTypeMonitorCycleStarted EventType = "MONITOR_CYCLE_STARTED"
	EventTypeMonitorCycleEnded   EventType = "MONITOR_CYCLE_ENDED"
	EventTypeMonitorCycleDropped EventType = "MONITOR_CYCLE_DROPPED"
	EventTypeQuotaReset          EventType = "QUOTA_RESET"

	EventTypeConfigUpdated EventType = "CONFIG_UPDATED"
)

// Severity is the urgency level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one append-only audit log entry. ConditionID groups entries by
// graph run; entries produced by the monitor (outside any single run)
// leave it empty.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	EventType   EventType              `json:"event_type"`
	Severity    Severity               `json:"severity"`
	ConditionID string                 `json:"condition_id,omitempty"`
	Stage       string                 `json:"stage"`
	Skipped     bool                   `json:"skipped"`
	Success     bool                   `json:"success"`
	ErrorMsg    string                 `json:"error_message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Duration    int64                  `json:"duration_ms,omitempty"`
}

// Logger records audit events to a structured log and, when a pool is
// configured, to the audit_log_entries table.
type Logger struct {
	db      *pgxpool.Pool
	enabled bool
}

// NewLogger creates an audit logger. Passing a nil pool disables
// persistence while still logging to zerolog.
func NewLogger(db *pgxpool.Pool, enabled bool) *Logger {
	return &Logger{db: db, enabled: enabled}
}

// Log records an audit event: structured log line first (always visible),
// then a best-effort persist. A persistence failure is logged and
// swallowed — it must never abort the run that produced the event.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if !l.enabled {
		return nil
	}

	start := time.Now()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	logEvent := log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("severity", string(event.Severity)).
		Str("condition_id", event.ConditionID).
		Str("stage", event.Stage).
		Bool("skipped", event.Skipped).
		Bool("success", event.Success).
		Logger()

	if event.ErrorMsg != "" {
		logEvent = logEvent.With().Str("error", event.ErrorMsg).Logger()
	}
	if event.Duration > 0 {
		logEvent = logEvent.With().Int64("duration_ms", event.Duration).Logger()
	}

	switch event.Severity {
	case SeverityCritical, SeverityError:
		logEvent.Error().Msg("audit event")
	case SeverityWarning:
		logEvent.Warn().Msg("audit event")
	default:
		logEvent.Info().Msg("audit event")
	}

	if l.db != nil {
		if err := l.persistEvent(ctx, event); err != nil {
			durationMs := float64(time.Since(start).Milliseconds())
			metrics.RecordAuditLog(string(event.EventType), false, durationMs)
			return nil
		}
	}

	durationMs := float64(time.Since(start).Milliseconds())
	metrics.RecordAuditLog(string(event.EventType), true, durationMs)
	return nil
}

func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO audit_log_entries (
			id, timestamp, event_type, severity, condition_id, stage,
			skipped, success, error_message, metadata, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal audit event metadata")
			metadataJSON = []byte("{}")
		}
	}

	_, err = l.db.Exec(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		event.Severity,
		event.ConditionID,
		event.Stage,
		event.Skipped,
		event.Success,
		event.ErrorMsg,
		metadataJSON,
		event.Duration,
	)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Msg("failed to persist audit event")
		return err
	}
	return nil
}

// QueryFilters narrows a Query call.
type QueryFilters struct {
	ConditionID string
	EventType   EventType
	StartTime   time.Time
	EndTime     time.Time
	Success     *bool
	Limit       int
}

// Query retrieves audit events matching the given filters, oldest first.
func (l *Logger) Query(ctx context.Context, filters *QueryFilters) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `
		SELECT
			id, timestamp, event_type, severity, condition_id, stage,
			skipped, success, error_message, metadata, duration_ms
		FROM audit_log_entries
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if filters.ConditionID != "" {
		query += placeholder(" AND condition_id = ", argPos)
		args = append(args, filters.ConditionID)
		argPos++
	}
	if filters.EventType != "" {
		query += placeholder(" AND event_type = ", argPos)
		args = append(args, filters.EventType)
		argPos++
	}
	if !filters.StartTime.IsZero() {
		query += placeholder(" AND timestamp >= ", argPos)
		args = append(args, filters.StartTime)
		argPos++
	}
	if !filters.EndTime.IsZero() {
		query += placeholder(" AND timestamp <= ", argPos)
		args = append(args, filters.EndTime)
		argPos++
	}
	if filters.Success != nil {
		query += placeholder(" AND success = ", argPos)
		args = append(args, *filters.Success)
		argPos++
	}

	query += " ORDER BY timestamp ASC"

	if filters.Limit > 0 {
		query += placeholder(" LIMIT ", argPos)
		args = append(args, filters.Limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var metadataJSON []byte

		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.EventType,
			&event.Severity,
			&event.ConditionID,
			&event.Stage,
			&event.Skipped,
			&event.Success,
			&event.ErrorMsg,
			&metadataJSON,
			&event.Duration,
		); err != nil {
			return nil, err
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				log.Warn().Err(err).Msg("failed to unmarshal audit event metadata")
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

func placeholder(clause string, argPos int) string {
	return clause + "$" + strconv.Itoa(argPos)
}

// LogNodeEntry records a graph node's completion, success or failure.
func (l *Logger) LogNodeEntry(ctx context.Context, conditionID, stage string, eventType EventType, success, skipped bool, durationMs int64, errorMsg string, metadata map[string]interface{}) error {
	severity := SeverityInfo
	if !success {
		severity = SeverityError
	}
	return l.Log(ctx, &Event{
		ConditionID: conditionID,
		EventType:   eventType,
		Severity:    severity,
		Stage:       stage,
		Skipped:     skipped,
		Success:     success,
		ErrorMsg:    errorMsg,
		Duration:    durationMs,
		Metadata:    metadata,
	})
}

// LogAgentEvent records one agent's fan-out outcome within a run.
func (l *Logger) LogAgentEvent(ctx context.Context, conditionID, agentName string, eventType EventType, durationMs int64, errorMsg string) error {
	severity := SeverityInfo
	if eventType == EventTypeAgentFailed || eventType == EventTypeAgentTimedOut {
		severity = SeverityWarning
	}
	return l.Log(ctx, &Event{
		ConditionID: conditionID,
		EventType:   eventType,
		Severity:    severity,
		Stage:       "agent:" + agentName,
		Success:     eventType == EventTypeAgentCompleted,
		ErrorMsg:    errorMsg,
		Duration:    durationMs,
		Metadata:    map[string]interface{}{"agent_name": agentName},
	})
}

// LogMonitorEvent records a scheduler-level event that happens outside any
// single graph run (cycle start/end/drop, quota reset).
func (l *Logger) LogMonitorEvent(ctx context.Context, eventType EventType, metadata map[string]interface{}) error {
	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  SeverityInfo,
		Stage:     "monitor",
		Success:   true,
		Metadata:  metadata,
	})
}
