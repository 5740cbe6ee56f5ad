package service

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/alarm-messenger/relay-server-go/internal/database"
	"github.com/alarm-messenger/relay-server-go/internal/model"
	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/repository"
)

type mockEmergencyStore struct {
	mock.Mock
}

func (m *mockEmergencyStore) Create(ctx context.Context, params model.CreateEmergencyParams) (*model.Emergency, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Emergency), args.Error(1)
}

func (m *mockEmergencyStore) FindByID(ctx context.Context, id string) (*model.Emergency, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Emergency), args.Error(1)
}

func (m *mockEmergencyStore) List(ctx context.Context, includeInactive bool, limit, offset int) ([]model.Emergency, error) {
	args := m.Called(ctx, includeInactive, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Emergency), args.Error(1)
}

func (m *mockEmergencyStore) Count(ctx context.Context, includeInactive bool) (int, error) {
	args := m.Called(ctx, includeInactive)
	return args.Int(0), args.Error(1)
}

func (m *mockEmergencyStore) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) ListActiveIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDirectory) ListActiveIDsInGroups(ctx context.Context, codes []string) ([]string, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// recordingNotifier captures SendMany calls and reports every target as
// delivered.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	targets      []string
	notification realtime.Notification
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{}
}

func (n *recordingNotifier) SendMany(ctx context.Context, ids []string, notif realtime.Notification) realtime.DispatchResult {
	n.mu.Lock()
	n.calls = append(n.calls, notifyCall{targets: ids, notification: notif})
	n.mu.Unlock()
	return realtime.DispatchResult{Targets: len(ids), Delivered: len(ids)}
}

func (n *recordingNotifier) Calls() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) Upsert(ctx context.Context, params model.RegisterDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByToken(ctx context.Context, token string) (*model.Device, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) List(ctx context.Context, limit, offset int) ([]model.Device, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockDeviceRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeviceRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDeviceRepo) ListActiveIDsInGroups(ctx context.Context, codes []string) ([]string, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockGroupRepo struct {
	mock.Mock
}

func (m *mockGroupRepo) List(ctx context.Context) ([]model.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) FindByCode(ctx context.Context, code string) (*model.Group, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *mockGroupRepo) Create(ctx context.Context, params model.CreateGroupParams) (*model.Group, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *mockGroupRepo) Update(ctx context.Context, code string, params model.UpdateGroupParams) (*model.Group, error) {
	args := m.Called(ctx, code, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *mockGroupRepo) Delete(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockGroupRepo) ListByDevice(ctx context.Context, deviceID string) ([]model.Group, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) ListCodesByDevice(ctx context.Context, deviceID string) ([]string, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGroupRepo) ReplaceDeviceGroups(ctx context.Context, deviceID string, codes []string) error {
	args := m.Called(ctx, deviceID, codes)
	return args.Error(0)
}

func (m *mockGroupRepo) WithTx(tx *sqlx.Tx) repository.GroupRepository {
	return m
}

type mockResponseRepo struct {
	mock.Mock
}

func (m *mockResponseRepo) Upsert(ctx context.Context, params model.SubmitResponseParams) (*model.Response, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Response), args.Error(1)
}

func (m *mockResponseRepo) ListDetails(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	args := m.Called(ctx, emergencyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResponseDetail), args.Error(1)
}

func (m *mockResponseRepo) ListParticipants(ctx context.Context, emergencyID string) ([]model.ResponseDetail, error) {
	args := m.Called(ctx, emergencyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResponseDetail), args.Error(1)
}

// inlineTx runs the callback without a real transaction.
type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var (
	_ repository.DeviceRepository   = (*mockDeviceRepo)(nil)
	_ repository.GroupRepository    = (*mockGroupRepo)(nil)
	_ repository.ResponseRepository = (*mockResponseRepo)(nil)
	_ EmergencyStore                = (*mockEmergencyStore)(nil)
	_ DeviceDirectory               = (*mockDirectory)(nil)
)
