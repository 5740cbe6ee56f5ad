package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/config"
	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/metrics"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

type EmergencyStore interface {
	Create(ctx context.Context, params model.CreateEmergencyParams) (*model.Emergency, error)
	FindByID(ctx context.Context, id string) (*model.Emergency, error)
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]model.Emergency, error)
	Count(ctx context.Context, includeInactive bool) (int, error)
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
}

// Notifier fans a notification out to live sessions.
type Notifier interface {
	SendMany(ctx context.Context, deviceIDs []string, n realtime.Notification) realtime.DispatchResult
}

type CreateEmergencyInput struct {
	Number      string
	Date        string
	Keyword     string
	Description string
	Location    string
	Groups      []string
}

type EmergencyService struct {
	store    EmergencyStore
	resolver *TargetResolver
	notifier Notifier
	now      func() time.Time

	inflight sync.WaitGroup
}

func NewEmergencyService(store EmergencyStore, resolver *TargetResolver, notifier Notifier) *EmergencyService {
	return &EmergencyService{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create validates and persists an emergency, then starts the live
// dispatch in the background. The returned record does not wait for it.
func (s *EmergencyService) Create(ctx context.Context, in CreateEmergencyInput) (*model.Emergency, error) {
	required := []struct{ field, value string }{
		{"emergencyNumber", in.Number},
		{"emergencyDate", in.Date},
		{"emergencyKeyword", in.Keyword},
		{"emergencyDescription", in.Description},
		{"emergencyLocation", in.Location},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, apperrors.MissingRequired(r.field)
		}
	}

	groups, err := NormalizeGroups(in.Groups)
	if err != nil {
		return nil, err
	}

	e, err := s.store.Create(ctx, model.CreateEmergencyParams{
		ID:          uuid.NewString(),
		Number:      strings.TrimSpace(in.Number),
		Date:        strings.TrimSpace(in.Date),
		Keyword:     strings.TrimSpace(in.Keyword),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Groups:      groups,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create emergency: %w", err))
	}

	metrics.EmergenciesCreated.Inc()
	log.Info().
		Str("emergencyId", e.ID).
		Str("keyword", e.Keyword).
		Str("groups", e.GroupList()).
		Msg("emergency created")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		dctx, cancel := context.WithTimeout(context.Background(), config.DispatchTimeout)
		defer cancel()
		_, _ = s.NotifyEmergencyCreated(dctx, e)
	}()

	return e, nil
}

// NotifyEmergencyCreated resolves the audience of e and pushes the alert
// to every connected member. Resolution failure leaves e untouched.
func (s *EmergencyService) NotifyEmergencyCreated(ctx context.Context, e *model.Emergency) (realtime.DispatchResult, error) {
	targets, err := s.resolver.Resolve(ctx, e)
	if err != nil {
		log.Error().Err(err).Str("emergencyId", e.ID).Msg("failed to resolve notification targets")
		return realtime.DispatchResult{}, err
	}
	metrics.DispatchTargets.Observe(float64(len(targets)))

	result := s.notifier.SendMany(ctx, targets, BuildNotification(e))

	log.Info().
		Str("emergencyId", e.ID).
		Int("targets", result.Targets).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Msg("emergency notifications dispatched")
	return result, nil
}

// Wait blocks until background dispatches started by Create finish.
func (s *EmergencyService) Wait() {
	s.inflight.Wait()
}

func (s *EmergencyService) Get(ctx context.Context, id string) (*model.Emergency, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Emergency")
	}
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find emergency: %w", err))
	}
	if e == nil {
		return nil, apperrors.NotFound("Emergency")
	}
	return e, nil
}

func (s *EmergencyService) List(ctx context.Context, includeInactive bool, limit, offset int) ([]model.Emergency, int, error) {
	emergencies, err := s.store.List(ctx, includeInactive, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(fmt.Errorf("list emergencies: %w", err))
	}
	total, err := s.store.Count(ctx, includeInactive)
	if err != nil {
		return nil, 0, apperrors.Database(fmt.Errorf("count emergencies: %w", err))
	}
	return emergencies, total, nil
}

// Deactivate moves an emergency to inactive. Deactivating an inactive
// record succeeds without changing it.
func (s *EmergencyService) Deactivate(ctx context.Context, id string) (*model.Emergency, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.State().CanTransition(model.EmergencyInactive) {
		return e, nil
	}

	now := s.now()
	changed, err := s.store.Deactivate(ctx, id, now)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("deactivate emergency: %w", err))
	}
	if !changed {
		// Lost a race with the expiry sweep.
		return s.Get(ctx, id)
	}

	metrics.EmergenciesDeactivated.WithLabelValues(metrics.TriggerManual).Inc()
	log.Info().Str("emergencyId", id).Msg("emergency deactivated manually")

	e.Active = false
	e.DeactivatedAt = &now
	return e, nil
}
