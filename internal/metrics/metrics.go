package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alarm_relay"

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Device sessions currently held by the registry.",
	})

	SessionEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_evictions_total",
		Help:      "Sessions removed from the registry, by reason.",
	}, []string{"reason"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Live notification send attempts, by outcome.",
	}, []string{"outcome"})

	EmergenciesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emergencies_created_total",
		Help:      "Emergencies persisted through the API.",
	})

	EmergenciesDeactivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emergencies_deactivated_total",
		Help:      "Emergencies moved to inactive, by trigger.",
	}, []string{"trigger"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_rejections_total",
		Help:      "API requests rejected by the per-IP limiter, by scope.",
	}, []string{"scope"})

	DispatchTargets = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_targets",
		Help:      "Resolved audience size per emergency dispatch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)

const (
	EvictReplaced  = "replaced"
	EvictLiveness  = "liveness"
	EvictClosed    = "closed"
	EvictWriteFail = "write_failed"
	EvictRemoved   = "removed"

	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeFailed    = "failed"

	TriggerSweep  = "sweep"
	TriggerManual = "manual"
)
