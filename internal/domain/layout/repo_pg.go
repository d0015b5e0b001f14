package layout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callboard/callboard/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Get(ctx context.Context, facility string) ([]*Position, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT facility, bed_label, x, y, updated_at FROM bed_layout
		WHERE facility = $1 ORDER BY bed_label`, facility)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Facility, &p.BedLabel, &p.X, &p.Y, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *repoPG) Replace(ctx context.Context, facility string, l Layout) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM bed_layout WHERE facility = $1`, facility); err != nil {
			return err
		}
		for bed, pt := range l {
			_, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO bed_layout (facility, bed_label, x, y) VALUES ($1, $2, $3, $4)`,
				facility, bed, pt.X, pt.Y)
			if err != nil {
				return fmt.Errorf("insert bed %s: %w", bed, err)
			}
		}
		return nil
	})
}

func (r *repoPG) DeleteBed(ctx context.Context, facility, bedLabel string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bed_layout WHERE facility = $1 AND bed_label = $2`, facility, bedLabel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
