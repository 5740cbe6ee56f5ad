package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/model"
)

const emergencyID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func validInput() CreateEmergencyInput {
	return CreateEmergencyInput{
		Number:      "2024-001",
		Date:        "2024-01-01T10:00:00Z",
		Keyword:     "B3",
		Description: "Wohnungsbrand",
		Location:    "Hauptstr. 1",
	}
}

func newEmergencyService(store *mockEmergencyStore, dir *mockDirectory, n *recordingNotifier) *EmergencyService {
	return NewEmergencyService(store, NewTargetResolver(dir), n)
}

func TestEmergencyService_Create(t *testing.T) {
	t.Run("persists and dispatches to group members", func(t *testing.T) {
		store := new(mockEmergencyStore)
		dir := new(mockDirectory)
		notifier := newRecordingNotifier()
		svc := newEmergencyService(store, dir, notifier)
		ctx := context.Background()

		in := validInput()
		in.Groups = []string{" wil26 ,swa11", "WIL26"}

		stored := &model.Emergency{
			ID: emergencyID, Number: in.Number, Date: in.Date, Keyword: in.Keyword,
			Description: in.Description, Location: in.Location,
			Groups: []string{"WIL26", "SWA11"}, Active: true,
		}
		store.On("Create", ctx, mock.MatchedBy(func(p model.CreateEmergencyParams) bool {
			return p.Keyword == "B3" && assert.ObjectsAreEqual([]string{"WIL26", "SWA11"}, p.Groups) && p.ID != ""
		})).Return(stored, nil)
		dir.On("ListActiveIDsInGroups", mock.Anything, []string{"WIL26", "SWA11"}).
			Return([]string{"d1", "d2", "d1"}, nil)

		e, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, emergencyID, e.ID)

		svc.Wait()
		calls := notifier.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"d1", "d2"}, calls[0].targets)
		assert.Equal(t, "EINSATZ: B3", calls[0].notification.Title)
		assert.Equal(t, "Hauptstr. 1 - Wohnungsbrand", calls[0].notification.Body)
		assert.Equal(t, "WIL26,SWA11", calls[0].notification.Data.Groups)
		store.AssertExpectations(t)
		dir.AssertExpectations(t)
	})

	t.Run("no groups targets every active device", func(t *testing.T) {
		store := new(mockEmergencyStore)
		dir := new(mockDirectory)
		notifier := newRecordingNotifier()
		svc := newEmergencyService(store, dir, notifier)

		store.On("Create", mock.Anything, mock.Anything).
			Return(&model.Emergency{ID: emergencyID, Keyword: "B3", Active: true}, nil)
		dir.On("ListActiveIDs", mock.Anything).Return([]string{"d1", "d2", "d3"}, nil)

		_, err := svc.Create(context.Background(), validInput())
		require.NoError(t, err)
		svc.Wait()

		calls := notifier.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"d1", "d2", "d3"}, calls[0].targets)
		assert.Empty(t, calls[0].notification.Data.Groups)
		dir.AssertNotCalled(t, "ListActiveIDsInGroups", mock.Anything, mock.Anything)
	})

	t.Run("missing field is rejected before storage", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())

		in := validInput()
		in.Location = "  "
		_, err := svc.Create(context.Background(), in)

		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid groups are rejected", func(t *testing.T) {
		svc := newEmergencyService(new(mockEmergencyStore), new(mockDirectory), newRecordingNotifier())

		in := validInput()
		in.Groups = []string{"WIL26;DROP"}
		_, err := svc.Create(context.Background(), in)

		assert.Equal(t, apperrors.ErrCodeInvalidGroups, apperrors.GetCode(err))
	})

	t.Run("storage failure is a database error", func(t *testing.T) {
		store := new(mockEmergencyStore)
		notifier := newRecordingNotifier()
		svc := newEmergencyService(store, new(mockDirectory), notifier)
		store.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := svc.Create(context.Background(), validInput())

		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
		svc.Wait()
		assert.Empty(t, notifier.Calls())
	})

	t.Run("resolution failure keeps the emergency", func(t *testing.T) {
		store := new(mockEmergencyStore)
		dir := new(mockDirectory)
		notifier := newRecordingNotifier()
		svc := newEmergencyService(store, dir, notifier)

		store.On("Create", mock.Anything, mock.Anything).
			Return(&model.Emergency{ID: emergencyID, Active: true}, nil)
		dir.On("ListActiveIDs", mock.Anything).Return(nil, errors.New("db down"))

		e, err := svc.Create(context.Background(), validInput())
		require.NoError(t, err)
		svc.Wait()

		assert.True(t, e.Active)
		assert.Empty(t, notifier.Calls())
	})
}

func TestEmergencyService_NotifyEmergencyCreated(t *testing.T) {
	dir := new(mockDirectory)
	notifier := newRecordingNotifier()
	svc := newEmergencyService(new(mockEmergencyStore), dir, notifier)
	dir.On("ListActiveIDsInGroups", mock.Anything, []string{"G1"}).Return([]string{}, nil)

	result, err := svc.NotifyEmergencyCreated(context.Background(),
		&model.Emergency{ID: emergencyID, Groups: []string{"G1"}, Active: true})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Targets)
}

func TestEmergencyService_Deactivate(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("active emergency becomes inactive", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())
		svc.now = func() time.Time { return fixed }

		store.On("FindByID", ctx, emergencyID).Return(&model.Emergency{ID: emergencyID, Active: true}, nil)
		store.On("Deactivate", ctx, emergencyID, fixed).Return(true, nil)

		e, err := svc.Deactivate(ctx, emergencyID)

		require.NoError(t, err)
		assert.False(t, e.Active)
		require.NotNil(t, e.DeactivatedAt)
		assert.Equal(t, fixed, *e.DeactivatedAt)
		store.AssertExpectations(t)
	})

	t.Run("inactive emergency is a no-op", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())
		store.On("FindByID", ctx, emergencyID).Return(&model.Emergency{ID: emergencyID, Active: false}, nil)

		e, err := svc.Deactivate(ctx, emergencyID)

		require.NoError(t, err)
		assert.False(t, e.Active)
		store.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())
		store.On("FindByID", ctx, emergencyID).Return(nil, nil)

		_, err := svc.Deactivate(ctx, emergencyID)

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("malformed id is not found without a query", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())

		_, err := svc.Deactivate(ctx, "nope")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		store.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("losing the race to the sweep returns the stored record", func(t *testing.T) {
		store := new(mockEmergencyStore)
		svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())
		svc.now = func() time.Time { return fixed }

		store.On("FindByID", ctx, emergencyID).Return(&model.Emergency{ID: emergencyID, Active: true}, nil).Once()
		store.On("Deactivate", ctx, emergencyID, fixed).Return(false, nil)
		store.On("FindByID", ctx, emergencyID).Return(&model.Emergency{ID: emergencyID, Active: false}, nil).Once()

		e, err := svc.Deactivate(ctx, emergencyID)

		require.NoError(t, err)
		assert.False(t, e.Active)
	})
}

func TestEmergencyService_List(t *testing.T) {
	store := new(mockEmergencyStore)
	svc := newEmergencyService(store, new(mockDirectory), newRecordingNotifier())
	ctx := context.Background()

	store.On("List", ctx, true, 50, 0).Return([]model.Emergency{{ID: "a"}, {ID: "b"}}, nil)
	store.On("Count", ctx, true).Return(2, nil)

	items, total, err := svc.List(ctx, true, 50, 0)

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, total)
}
