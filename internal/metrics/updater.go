package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/solarb/engine/internal/store"
)

// Updater periodically refreshes the database pool's connection usage
// gauges. The persisted model's threshold/accuracy and decision-record
// throughput are polled separately by RefreshFromStore.
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

// Start begins the metrics update loop. Blocks until ctx is cancelled or
// Stop is called.
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.updateDatabaseMetrics()

	for {
		select {
		case <-ticker.C:
			u.updateDatabaseMetrics()
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

// updateDatabaseMetrics updates database connection pool metrics.
func (u *Updater) updateDatabaseMetrics() {
	if u.db == nil {
		return
	}
	stat := u.db.Stat()
	UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
}

// RefreshFromStore polls the store for the current persisted model and
// recent throughput, updating the learning gauges and observing the count
// of decision records in the window into CandidatesPerTick. This
// is separate from the ticker loop above because it needs a *store.Store,
// which owns its own serialization concerns.
func RefreshFromStore(ctx context.Context, s *store.Store, window time.Duration, now time.Duration) {
	model, ok, err := s.LoadLatestModel(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh learned model metrics")
		return
	}
	if !ok {
		return
	}
	UpdateLearningState(model.ConfidenceThreshold, model.RollingAccuracy)

	since := (now - window).Milliseconds()
	if since < 0 {
		since = 0
	}
	count, err := s.CountRecordsSince(ctx, since)
	if err != nil {
		log.Error().Err(err).Msg("failed to count recent decision records")
		return
	}
	CandidatesPerTick.Observe(float64(count))
}
