package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/config"
	"github.com/alarm-messenger/relay-server-go/internal/metrics"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

// ExpiryStore is the slice of emergency storage the sweep needs.
type ExpiryStore interface {
	FindActiveCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Emergency, error)
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
}

// ExpiryJob deactivates emergencies older than the retention window.
type ExpiryJob struct {
	store     ExpiryStore
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	done      chan struct{}
	stopped   chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewExpiryJob(store ExpiryStore, interval, retention time.Duration) *ExpiryJob {
	return &ExpiryJob{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start launches the sweep loop. Calls after the first are no-ops.
func (j *ExpiryJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	j.started = true
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("retention", j.retention).
		Msg("emergency expiry job started")
}

// Stop ends the loop and waits for an in-progress sweep to finish. It is
// safe to call more than once and before Start.
func (j *ExpiryJob) Stop() {
	j.stopOnce.Do(func() {
		j.mu.Lock()
		started := j.started
		j.started = true // a later Start must not launch the loop
		j.mu.Unlock()

		close(j.done)
		if started {
			<-j.stopped
		}
		log.Info().Msg("emergency expiry job stopped")
	})
}

func (j *ExpiryJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.tick()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *ExpiryJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), config.SweepTimeout)
	defer cancel()
	j.Sweep(ctx)
}

// Sweep deactivates every active emergency created before now minus the
// retention window and returns how many it changed. A record that fails
// is logged and skipped.
func (j *ExpiryJob) Sweep(ctx context.Context) int {
	now := j.now()
	cutoff := now.Add(-j.retention)

	expired, err := j.store.FindActiveCreatedBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to query expired emergencies")
		return 0
	}

	count := 0
	for _, e := range expired {
		changed, err := j.store.Deactivate(ctx, e.ID, now)
		if err != nil {
			log.Error().Err(err).Str("emergencyId", e.ID).Msg("failed to deactivate expired emergency")
			continue
		}
		if !changed {
			continue
		}
		count++
		metrics.EmergenciesDeactivated.WithLabelValues(metrics.TriggerSweep).Inc()
		log.Info().
			Str("emergencyId", e.ID).
			Time("createdAt", e.CreatedAt).
			Msg("emergency auto-deactivated")
	}

	if count > 0 {
		log.Info().Int("count", count).Msg("expired emergencies deactivated")
	}
	return count
}
