package telemetry

import (
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/externaldata"
)

// LogSink writes every event to the structured logger instead of NATS,
// mirroring the teacher's LogAlerter fallback for environments with no
// message bus configured.
type LogSink struct {
	ConditionID string
}

func (s *LogSink) Emit(event externaldata.TelemetryEvent) {
	log.Info().
		Str("conditionId", s.ConditionID).
		Str("source", event.Source).
		Str("provider", event.Provider).
		Bool("cached", event.Cached).
		Bool("stale", event.Stale).
		Str("freshness", string(event.Freshness)).
		Int("itemCount", event.ItemCount).
		Dur("duration", event.Duration).
		Str("error", event.Error).
		Msg("external data fetch")
}

func (s *LogSink) EmitNamed(conditionID, kind string, data map[string]interface{}) {
	log.Info().Str("conditionId", conditionID).Str("kind", kind).Fields(data).Msg("telemetry event")
}

var (
	_ Sink                   = (*LogSink)(nil)
	_ externaldata.EventSink = (*LogSink)(nil)
)
