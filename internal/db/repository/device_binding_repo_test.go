package repository

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type mockDeviceBindingStore struct {
	mock.Mock
}

func (m *mockDeviceBindingStore) ReplaceDeviceBindings(ctx context.Context, iterationID int64, arg []store.InsertDeviceBindingParams) error {
	return m.Called(ctx, iterationID, arg).Error(0)
}

func (m *mockDeviceBindingStore) ListDeviceBindings(ctx context.Context, iterationID int64) ([]store.DeviceBinding, error) {
	args := m.Called(ctx, iterationID)
	return args.Get(0).([]store.DeviceBinding), args.Error(1)
}

func TestDeviceBindingRepository_ReplaceBindingsNormalisesSerial(t *testing.T) {
	st := new(mockDeviceBindingStore)
	repo := NewDeviceBindingRepository(st)

	st.On("ReplaceDeviceBindings", mock.Anything, int64(3), []store.InsertDeviceBindingParams{
		{IterationID: 3, ParticipantID: 5, DeviceSerial: "1A2B3C", FirstName: "Anne", LastName: "Martin", VisualID: 2},
	}).Return(nil)

	err := repo.ReplaceBindings(context.Background(), 3, []session.DeviceBinding{
		{ParticipantID: 5, DeviceSerial: " 1a2b3c ", FirstName: "Anne", LastName: "Martin", VisualID: 2},
	})
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestDeviceBindingRepository_SwapDevicesInOneCall(t *testing.T) {
	st := new(mockDeviceBindingStore)
	repo := NewDeviceBindingRepository(st)

	st.On("ReplaceDeviceBindings", mock.Anything, int64(3), []store.InsertDeviceBindingParams{
		{IterationID: 3, ParticipantID: 1, DeviceSerial: "B"},
		{IterationID: 3, ParticipantID: 2, DeviceSerial: "A"},
	}).Return(nil).Once()

	err := repo.ReplaceBindings(context.Background(), 3, []session.DeviceBinding{
		{ParticipantID: 1, DeviceSerial: "b"},
		{ParticipantID: 2, DeviceSerial: "a"},
	})
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestDeviceBindingRepository_ReplaceBindingsErrors(t *testing.T) {
	t.Run("visual id out of range", func(t *testing.T) {
		st := new(mockDeviceBindingStore)
		err := NewDeviceBindingRepository(st).ReplaceBindings(context.Background(), 3, []session.DeviceBinding{
			{ParticipantID: 1, DeviceSerial: "A", VisualID: math.MaxInt32 + 1},
		})
		require.Error(t, err)
		st.AssertNotCalled(t, "ReplaceDeviceBindings", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		st := new(mockDeviceBindingStore)
		st.On("ReplaceDeviceBindings", mock.Anything, int64(3), mock.Anything).Return(errors.New("duplicate key"))
		err := NewDeviceBindingRepository(st).ReplaceBindings(context.Background(), 3, []session.DeviceBinding{
			{ParticipantID: 1, DeviceSerial: "A"},
		})
		assert.ErrorContains(t, err, "replace device bindings")
	})
}

func TestDeviceBindingRepository_ListBindings(t *testing.T) {
	st := new(mockDeviceBindingStore)
	repo := NewDeviceBindingRepository(st)

	st.On("ListDeviceBindings", mock.Anything, int64(3)).Return([]store.DeviceBinding{
		{IterationID: 3, ParticipantID: 5, DeviceSerial: "1A2B3C", FirstName: "Anne", LastName: "Martin", VisualID: 2},
	}, nil)

	got, err := repo.ListBindings(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []session.DeviceBinding{
		{ParticipantID: 5, DeviceSerial: "1A2B3C", FirstName: "Anne", LastName: "Martin", VisualID: 2},
	}, got)
	st.AssertExpectations(t)
}
