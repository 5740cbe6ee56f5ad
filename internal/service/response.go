package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/repository"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

type ResponseService struct {
	responseRepo repository.ResponseRepository
	emergencies  *EmergencyService
}

func NewResponseService(responseRepo repository.ResponseRepository, emergencies *EmergencyService) *ResponseService {
	return &ResponseService{
		responseRepo: responseRepo,
		emergencies:  emergencies,
	}
}

// Submit records whether a device takes part in an emergency.
func (s *ResponseService) Submit(ctx context.Context, emergencyID, deviceID string, participating bool) (*model.Response, error) {
	if _, err := s.emergencies.Get(ctx, emergencyID); err != nil {
		return nil, err
	}
	if !util.IsValidUUID(deviceID) {
		return nil, apperrors.InvalidInput("deviceId", "must be a UUID")
	}

	resp, err := s.responseRepo.Upsert(ctx, model.SubmitResponseParams{
		ID:            uuid.NewString(),
		EmergencyID:   emergencyID,
		DeviceID:      deviceID,
		Participating: participating,
	})
	if repository.IsForeignKeyViolation(err) {
		return nil, apperrors.NotFound("Device")
	}
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("submit response: %w", err))
	}

	log.Info().
		Str("emergencyId", emergencyID).
		Str("deviceId", deviceID).
		Bool("participating", participating).
		Msg("emergency response recorded")
	return resp, nil
}

func (s *ResponseService) List(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	if _, err := s.emergencies.Get(ctx, emergencyID); err != nil {
		return nil, err
	}
	details, err := s.responseRepo.ListDetails(ctx, emergencyID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list responses: %w", err))
	}
	return details, nil
}

func (s *ResponseService) Participants(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	if _, err := s.emergencies.Get(ctx, emergencyID); err != nil {
		return nil, err
	}
	details, err := s.responseRepo.ListParticipants(ctx, emergencyID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list participants: %w", err))
	}
	return details, nil
}
