// Package telemetry is the append-only observability event stream the
// external-data layer and graph runtime publish onto: one NATS subject per
// condition ID, carrying the structured fetch-decision events from
// spec.md §4.6.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/marketoracle/internal/externaldata"
)

// SubjectPrefix is the NATS subject template every event publishes under,
// one subject per market so a consumer can subscribe to a single run's
// trace without filtering.
const SubjectPrefix = "marketoracle.trace."

// Sink publishes externaldata.TelemetryEvent values (and, more generally,
// any named event) onto a per-condition NATS subject.
type Sink interface {
	Emit(event externaldata.TelemetryEvent)
	EmitNamed(conditionID, kind string, data map[string]interface{})
}

// Envelope is the wire shape every published message carries, whether it
// originated from the external-data layer or a graph-run stage.
type Envelope struct {
	ConditionID string                 `json:"conditionId"`
	Kind        string                 `json:"kind"`
	Timestamp   time.Time              `json:"timestamp"`
	FetchEvent  *externaldata.TelemetryEvent `json:"fetchEvent,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// NATSSink publishes onto SubjectPrefix+conditionId, following the same
// nats.Connect-with-reconnect-handlers shape as
// ajitpratap0-cryptofunk/internal/orchestrator/messagebus.go, redirected
// from agent-to-agent messaging to a one-way observability stream.
type NATSSink struct {
	nc          *nats.Conn
	conditionID string
}

// Config configures a NATSSink connection.
type Config struct {
	URL string
}

// NewNATSSink connects to NATS and returns a Sink scoped to one condition
// ID's subject.
func NewNATSSink(cfg Config, conditionID string) (*NATSSink, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("marketoracle-telemetry"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("telemetry NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("telemetry NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: connect to NATS: %w", err)
	}
	return &NATSSink{nc: nc, conditionID: conditionID}, nil
}

// Emit publishes an external-data fetch-decision event.
func (s *NATSSink) Emit(event externaldata.TelemetryEvent) {
	s.publish(Envelope{
		ConditionID: s.conditionID,
		Kind:        "fetch",
		Timestamp:   time.Now(),
		FetchEvent:  &event,
	})
}

// EmitNamed publishes an arbitrary named event (graph-node/monitor-cycle
// level) with a free-form data payload.
func (s *NATSSink) EmitNamed(conditionID, kind string, data map[string]interface{}) {
	s.publish(Envelope{
		ConditionID: conditionID,
		Kind:        kind,
		Timestamp:   time.Now(),
		Data:        data,
	})
}

func (s *NATSSink) publish(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("telemetry: failed to marshal envelope")
		return
	}
	subject := SubjectPrefix + env.ConditionID
	if err := s.nc.Publish(subject, payload); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("telemetry: publish failed")
	}
}

// Close closes the underlying NATS connection; it does not call Drain.
func (s *NATSSink) Close() {
	s.nc.Close()
}

var (
	_ Sink                      = (*NATSSink)(nil)
	_ externaldata.EventSink    = (*NATSSink)(nil)
)
