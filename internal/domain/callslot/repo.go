package callslot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Slot) error
	// CreateBatch inserts all slots atomically. Slots whose master patient
	// is already present in the session are skipped; the number actually
	// inserted is returned.
	CreateBatch(ctx context.Context, slots []*Slot) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListBySession(ctx context.Context, sessionKey string) ([]*Slot, error)
	// UpdateStatus writes to only while the stored status is still from.
	// A slot that has moved on fails with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedBy *string) (time.Time, error)
	UpdateDisplay(ctx context.Context, s *Slot) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionKey string) (int64, error)
}
