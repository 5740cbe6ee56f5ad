package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/repository"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

// TxRunner runs fn in a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type GroupService struct {
	groupRepo  repository.GroupRepository
	deviceRepo repository.DeviceRepository
	tx         TxRunner
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	deviceRepo repository.DeviceRepository,
	tx TxRunner,
) *GroupService {
	return &GroupService{
		groupRepo:  groupRepo,
		deviceRepo: deviceRepo,
		tx:         tx,
	}
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list groups: %w", err))
	}
	return groups, nil
}

func (s *GroupService) Get(ctx context.Context, code string) (*model.Group, error) {
	code, err := NormalizeGroupCode(code)
	if err != nil {
		return nil, err
	}
	g, err := s.groupRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find group: %w", err))
	}
	if g == nil {
		return nil, apperrors.NotFound("Group")
	}
	return g, nil
}

func (s *GroupService) Create(ctx context.Context, params model.CreateGroupParams) (*model.Group, error) {
	code, err := NormalizeGroupCode(params.Code)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	g, err := s.groupRepo.Create(ctx, model.CreateGroupParams{
		Code:        code,
		Name:        name,
		Description: params.Description,
	})
	if repository.IsUniqueViolation(err) {
		return nil, apperrors.AlreadyExists("Group")
	}
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create group: %w", err))
	}

	log.Info().Str("groupCode", code).Msg("group created")
	return g, nil
}

func (s *GroupService) Update(ctx context.Context, code string, params model.UpdateGroupParams) (*model.Group, error) {
	code, err := NormalizeGroupCode(code)
	if err != nil {
		return nil, err
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return nil, apperrors.InvalidInput("name", "must not be empty")
	}
	g, err := s.groupRepo.Update(ctx, code, params)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("update group: %w", err))
	}
	if g == nil {
		return nil, apperrors.NotFound("Group")
	}
	return g, nil
}

func (s *GroupService) Delete(ctx context.Context, code string) error {
	code, err := NormalizeGroupCode(code)
	if err != nil {
		return err
	}
	deleted, err := s.groupRepo.Delete(ctx, code)
	if err != nil {
		return apperrors.Database(fmt.Errorf("delete group: %w", err))
	}
	if !deleted {
		return apperrors.NotFound("Group")
	}
	log.Info().Str("groupCode", code).Msg("group deleted")
	return nil
}

func (s *GroupService) ListByDevice(ctx context.Context, deviceID string) ([]model.Group, error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	groups, err := s.groupRepo.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list device groups: %w", err))
	}
	return groups, nil
}

// AssignDevice replaces the memberships of a device in one transaction.
func (s *GroupService) AssignDevice(ctx context.Context, deviceID string, rawCodes []string) ([]string, error) {
	if err := s.requireDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	codes, err := NormalizeGroups(rawCodes)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.groupRepo.WithTx(tx).ReplaceDeviceGroups(ctx, deviceID, codes)
	})
	if repository.IsForeignKeyViolation(err) {
		return nil, apperrors.InvalidInput("groupCodes", "unknown group code")
	}
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("assign device groups: %w", err))
	}

	log.Info().Str("deviceId", deviceID).Strs("groups", codes).Msg("device groups updated")
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

func (s *GroupService) requireDevice(ctx context.Context, deviceID string) error {
	if !util.IsValidUUID(deviceID) {
		return apperrors.NotFound("Device")
	}
	d, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return apperrors.Database(fmt.Errorf("find device: %w", err))
	}
	if d == nil {
		return apperrors.NotFound("Device")
	}
	return nil
}
