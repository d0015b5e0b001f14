package layout

import "context"

type Repository interface {
	Get(ctx context.Context, facility string) ([]*Position, error)
	// Replace swaps the whole layout of a facility in one transaction.
	Replace(ctx context.Context, facility string, l Layout) error
	DeleteBed(ctx context.Context, facility, bedLabel string) error
}
