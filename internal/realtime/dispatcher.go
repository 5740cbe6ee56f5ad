package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/metrics"
)

// DispatchResult summarises one fan-out. Failed counts offline devices
// as well as devices whose send errored.
type DispatchResult struct {
	Targets   int `json:"targets"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// SendOne pushes n to a single device and reports whether the frame
// was written to a live session.
func (d *Dispatcher) SendOne(deviceID string, n Notification) bool {
	frame, err := n.Encode()
	if err != nil {
		log.Error().Err(err).Str("deviceId", deviceID).Msg("failed to encode notification")
		return false
	}
	return d.deliver(deviceID, frame)
}

// SendMany pushes n to every id concurrently. Per-device failures are
// counted, never returned.
func (d *Dispatcher) SendMany(ctx context.Context, deviceIDs []string, n Notification) DispatchResult {
	result := DispatchResult{Targets: len(deviceIDs)}
	if len(deviceIDs) == 0 {
		return result
	}

	frame, err := n.Encode()
	if err != nil {
		log.Error().Err(err).Int("targets", len(deviceIDs)).Msg("failed to encode notification")
		result.Failed = len(deviceIDs)
		return result
	}

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for _, id := range deviceIDs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if d.deliver(id, frame) {
				delivered.Add(1)
			}
		}(id)
	}
	wg.Wait()

	result.Delivered = int(delivered.Load())
	result.Failed = result.Targets - result.Delivered

	log.Info().
		Int("targets", result.Targets).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Msg("notification dispatch finished")
	return result
}

func (d *Dispatcher) deliver(deviceID string, frame []byte) bool {
	s, ok := d.registry.Lookup(deviceID)
	if !ok {
		metrics.NotificationsSent.WithLabelValues(metrics.OutcomeOffline).Inc()
		log.Debug().Str("deviceId", deviceID).Msg("device not connected, skipping live notification")
		return false
	}
	if err := s.Send(frame); err != nil {
		metrics.NotificationsSent.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("failed to send notification")
		d.registry.evict(s, metrics.EvictWriteFail)
		return false
	}
	metrics.NotificationsSent.WithLabelValues(metrics.OutcomeDelivered).Inc()
	return true
}
