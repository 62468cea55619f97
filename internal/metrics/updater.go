package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Updater periodically refreshes gauges that are cheaper to recompute from
// the database on a timer than to update inline on every write.
type Updater struct {
	db       *pgxpool.Pool
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater.
func NewUpdater(db *pgxpool.Pool, interval time.Duration) *Updater {
	return &Updater{
		db:       db,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop. It blocks until Stop is called or
// ctx is cancelled.
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater.
func (u *Updater) Stop() {
	close(u.stopCh)
}

func (u *Updater) update(ctx context.Context) {
	u.updateAgentAccuracyMetrics(ctx)
	u.updateDatabaseMetrics()
}

// updateAgentAccuracyMetrics refreshes the per-agent accuracy gauge from the
// durable performance table, so /metrics reflects the leaderboard without
// every performance.Tracker update having to touch Prometheus directly.
func (u *Updater) updateAgentAccuracyMetrics(ctx context.Context) {
	query := `
		SELECT agent_name, accuracy_score
		FROM agent_performance_metrics
		WHERE total_analyses > 0
	`

	rows, err := u.db.Query(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch agent accuracy metrics")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var agentName string
		var accuracy float64
		if err := rows.Scan(&agentName, &accuracy); err != nil {
			continue
		}
		UpdateAgentAccuracyScore(agentName, accuracy)
	}
}

func (u *Updater) updateDatabaseMetrics() {
	stat := u.db.Stat()
	UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
}
