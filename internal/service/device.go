package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/repository"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

// SessionCloser drops the live session of a device.
type SessionCloser interface {
	Remove(deviceID string) bool
}

type RegisterDeviceInput struct {
	DeviceToken       string
	RegistrationToken string
	Platform          string
	FirstName         *string
	LastName          *string
	Qualifications    model.Qualifications
	LeadershipRole    string
}

type DeviceService struct {
	deviceRepo repository.DeviceRepository
	groupRepo  repository.GroupRepository
	sessions   SessionCloser
}

func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	groupRepo repository.GroupRepository,
	sessions SessionCloser,
) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		groupRepo:  groupRepo,
		sessions:   sessions,
	}
}

func (s *DeviceService) Register(ctx context.Context, in RegisterDeviceInput) (*model.Device, error) {
	token := strings.TrimSpace(in.DeviceToken)
	if token == "" {
		return nil, apperrors.MissingRequired("deviceToken")
	}
	regToken := strings.TrimSpace(in.RegistrationToken)
	if regToken == "" {
		return nil, apperrors.MissingRequired("registrationToken")
	}
	platform := model.Platform(strings.ToLower(strings.TrimSpace(in.Platform)))
	if !platform.Valid() {
		return nil, apperrors.InvalidPlatform()
	}
	role := model.LeadershipNone
	if in.LeadershipRole != "" {
		role = model.LeadershipRole(in.LeadershipRole)
		if !role.Valid() {
			return nil, apperrors.InvalidInput("leadershipRole", "must be none, groupLeader or platoonLeader")
		}
	}

	device, err := s.deviceRepo.Upsert(ctx, model.RegisterDeviceParams{
		ID:                uuid.NewString(),
		DeviceToken:       token,
		RegistrationToken: regToken,
		Platform:          platform,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Qualifications:    in.Qualifications,
		LeadershipRole:    role,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("register device: %w", err))
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("deviceToken", util.MaskToken(token)).
		Str("platform", string(platform)).
		Msg("device registered")
	return device, nil
}

func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Device")
	}
	device, err := s.deviceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find device: %w", err))
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}
	codes, err := s.groupRepo.ListCodesByDevice(ctx, id)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list device groups: %w", err))
	}
	device.AssignedGroups = codes
	return device, nil
}

func (s *DeviceService) List(ctx context.Context, limit, offset int) ([]model.Device, int, error) {
	devices, err := s.deviceRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(fmt.Errorf("list devices: %w", err))
	}
	total, err := s.deviceRepo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(fmt.Errorf("count devices: %w", err))
	}
	return devices, total, nil
}

// Deactivate excludes a device from future targeting and drops its live
// session. Deactivating twice is not an error.
func (s *DeviceService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.deviceRepo.Deactivate(ctx, id); err != nil {
		return apperrors.Database(fmt.Errorf("deactivate device: %w", err))
	}
	if s.sessions != nil {
		s.sessions.Remove(id)
	}
	log.Info().Str("deviceId", id).Msg("device deactivated")
	return nil
}
