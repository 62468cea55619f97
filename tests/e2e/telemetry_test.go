package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/marketoracle/internal/externaldata"
	"github.com/ajitpratap0/marketoracle/internal/telemetry"
)

// TestNATSSink_EmitFetchEvent confirms a fetch-decision event published by
// the external-data layer reaches a subscriber on the per-condition subject.
func TestNATSSink_EmitFetchEvent(t *testing.T) {
	ns := startEmbeddedNATS(t)
	defer ns.Shutdown()

	conditionID := "0xe2e01"
	sink, err := telemetry.NewNATSSink(telemetry.Config{URL: ns.ClientURL()}, conditionID)
	require.NoError(t, err)
	defer sink.Close()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := subscribeCollect(t, nc, telemetry.SubjectPrefix+conditionID)

	sink.Emit(externaldata.TelemetryEvent{
		Source:    externaldata.SourceNews,
		Provider:  "newsapi",
		Cached:    false,
		ItemCount: 3,
		Duration:  120 * time.Millisecond,
	})

	select {
	case msg := <-received:
		var env telemetry.Envelope
		require.NoError(t, json.Unmarshal(msg.Data, &env))
		assert.Equal(t, conditionID, env.ConditionID)
		assert.Equal(t, "fetch", env.Kind)
		require.NotNil(t, env.FetchEvent)
		assert.Equal(t, externaldata.SourceNews, env.FetchEvent.Source)
		assert.Equal(t, 3, env.FetchEvent.ItemCount)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive telemetry event")
	}
}

// TestNATSSink_EmitNamed confirms a named graph-stage event carries its
// free-form payload through to the subscriber untouched.
func TestNATSSink_EmitNamed(t *testing.T) {
	ns := startEmbeddedNATS(t)
	defer ns.Shutdown()

	conditionID := "0xe2e02"
	sink, err := telemetry.NewNATSSink(telemetry.Config{URL: ns.ClientURL()}, conditionID)
	require.NoError(t, err)
	defer sink.Close()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := subscribeCollect(t, nc, telemetry.SubjectPrefix+conditionID)

	sink.EmitNamed(conditionID, "run_completed", map[string]interface{}{"agentCount": 4.0})

	select {
	case msg := <-received:
		var env telemetry.Envelope
		require.NoError(t, json.Unmarshal(msg.Data, &env))
		assert.Equal(t, "run_completed", env.Kind)
		assert.Equal(t, 4.0, env.Data["agentCount"])
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive telemetry event")
	}
}
