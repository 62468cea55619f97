package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCheckpointer persists GraphState to Redis keyed by conditionId, the
// same client the teacher's blackboard uses for process-wide shared state.
// A checkpoint TTL bounds how long a stalled run's state lingers.
type RedisCheckpointer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCheckpointer returns a Checkpointer backed by client, retaining
// each checkpoint for ttl (spec.md does not fix a value; DESIGN.md records
// the chosen default of config.Graph.CheckpointTTLHr).
func NewRedisCheckpointer(client *redis.Client, ttl time.Duration) *RedisCheckpointer {
	return &RedisCheckpointer{client: client, ttl: ttl}
}

func checkpointKey(conditionID string) string {
	return fmt.Sprintf("graph:checkpoint:%s", conditionID)
}

// checkpointEnvelope is the JSON-serializable projection of GraphState that
// survives a Redis round trip: pointers to value structs serialize fine,
// but CompletedNodes/MemoryContext maps need explicit zero-value handling.
type checkpointEnvelope struct {
	State *GraphState
}

func (r *RedisCheckpointer) Save(ctx context.Context, conditionID string, state *GraphState) error {
	data, err := json.Marshal(checkpointEnvelope{State: state})
	if err != nil {
		return fmt.Errorf("graph: marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, checkpointKey(conditionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("graph: save checkpoint: %w", err)
	}
	return nil
}

func (r *RedisCheckpointer) Load(ctx context.Context, conditionID string) (*GraphState, bool, error) {
	data, err := r.client.Get(ctx, checkpointKey(conditionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("graph: load checkpoint: %w", err)
	}
	var envelope checkpointEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("graph: unmarshal checkpoint: %w", err)
	}
	if envelope.State == nil {
		return nil, false, nil
	}
	if envelope.State.MemoryContext == nil {
		envelope.State.MemoryContext = make(map[string]AgentMemoryContext)
	}
	if envelope.State.CompletedNodes == nil {
		envelope.State.CompletedNodes = make(map[string]bool)
	}
	return envelope.State, true, nil
}

// Delete removes a run's checkpoint, used once a run reaches a terminal
// state (Recommendation produced or aborted) and no resume is expected.
func (r *RedisCheckpointer) Delete(ctx context.Context, conditionID string) error {
	return r.client.Del(ctx, checkpointKey(conditionID)).Err()
}
