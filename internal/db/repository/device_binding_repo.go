package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type deviceBindingStore interface {
	ReplaceDeviceBindings(ctx context.Context, iterationID int64, arg []store.InsertDeviceBindingParams) error
	ListDeviceBindings(ctx context.Context, iterationID int64) ([]store.DeviceBinding, error)
}

// DeviceBindingRepository reads and writes the device assigned to each participant of
// an iteration.
type DeviceBindingRepository struct {
	store deviceBindingStore
}

func NewDeviceBindingRepository(store deviceBindingStore) *DeviceBindingRepository {
	return &DeviceBindingRepository{store: store}
}

// ReplaceBindings stores bindings as the iteration's complete roster; serials are
// normalised first.
func (r *DeviceBindingRepository) ReplaceBindings(ctx context.Context, iterationID int64, bindings []session.DeviceBinding) error {
	params := make([]store.InsertDeviceBindingParams, 0, len(bindings))
	for _, b := range bindings {
		if b.VisualID < 0 || b.VisualID > math.MaxInt32 {
			return fmt.Errorf("visual id %d of participant %d out of range", b.VisualID, b.ParticipantID)
		}
		params = append(params, store.InsertDeviceBindingParams{
			IterationID:   iterationID,
			ParticipantID: b.ParticipantID,
			DeviceSerial:  session.NormalizeSerial(b.DeviceSerial),
			FirstName:     b.FirstName,
			LastName:      b.LastName,
			VisualID:      int32(b.VisualID),
		})
	}
	if err := r.store.ReplaceDeviceBindings(ctx, iterationID, params); err != nil {
		return fmt.Errorf("replace device bindings: %w", err)
	}
	return nil
}

func (r *DeviceBindingRepository) ListBindings(ctx context.Context, iterationID int64) ([]session.DeviceBinding, error) {
	rows, err := r.store.ListDeviceBindings(ctx, iterationID)
	if err != nil {
		return nil, fmt.Errorf("list device bindings: %w", err)
	}
	out := make([]session.DeviceBinding, 0, len(rows))
	for _, row := range rows {
		out = append(out, session.DeviceBinding{
			ParticipantID: row.ParticipantID,
			DeviceSerial:  row.DeviceSerial,
			FirstName:     row.FirstName,
			LastName:      row.LastName,
			VisualID:      int(row.VisualID),
		})
	}
	return out, nil
}
