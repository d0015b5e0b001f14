package roster

import (
	"context"

	"github.com/google/uuid"

	"github.com/callboard/callboard/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, m *MasterPatient) error
	GetByID(ctx context.Context, id uuid.UUID) (*MasterPatient, error)
	Update(ctx context.Context, m *MasterPatient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*MasterPatient, int, error)
	// ListAll returns every match of f without paging.
	ListAll(ctx context.Context, f Filter) ([]*MasterPatient, error)
	// ReplaceFacility deletes a facility's roster and inserts ms in one
	// transaction.
	ReplaceFacility(ctx context.Context, facility string, ms []*MasterPatient) error
	CreateBatch(ctx context.Context, ms []*MasterPatient) error
}
