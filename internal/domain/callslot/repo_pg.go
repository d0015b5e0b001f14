package callslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, session_key, facility, name, furigana_name, bed_label, status,
	is_temporary, master_patient_ref, updated_by, created_at, updated_at`

const insertSlot = `
	INSERT INTO call_slot (
		id, session_key, session_date, facility, shift, name, furigana_name, bed_label,
		status, is_temporary, master_patient_ref, updated_by
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

func insertArgs(s *Slot) ([]interface{}, error) {
	key, err := ParseSessionKey(s.SessionKey)
	if err != nil {
		return nil, err
	}
	s.ID = uuid.New()
	s.Facility = key.Facility
	return []interface{}{
		s.ID, s.SessionKey, key.Date, key.Facility, key.Shift, s.Name, s.FuriganaName, s.BedLabel,
		s.Status, s.IsTemporary, s.MasterPatientRef, s.UpdatedBy,
	}, nil
}

func (r *repoPG) Create(ctx context.Context, s *Slot) error {
	args, err := insertArgs(s)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, insertSlot+` RETURNING created_at, updated_at`, args...).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) CreateBatch(ctx context.Context, slots []*Slot) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		for _, s := range slots {
			args, err := insertArgs(s)
			if err != nil {
				return err
			}
			tag, err := r.conn(ctx).Exec(ctx, insertSlot+`
				ON CONFLICT (session_key, master_patient_ref) WHERE master_patient_ref IS NOT NULL
				DO NOTHING`, args...)
			if err != nil {
				return fmt.Errorf("insert slot %s: %w", s.BedLabel, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM call_slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) ListBySession(ctx context.Context, sessionKey string) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM call_slot WHERE session_key = $1 ORDER BY bed_label, created_at`, sessionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, updatedBy *string) (time.Time, error) {
	var at time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE call_slot SET status = $3, updated_by = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`,
		id, from, to, updatedBy,
	).Scan(&at)
	if !errors.Is(err, pgx.ErrNoRows) {
		return at, err
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM call_slot WHERE id = $1)`, id).Scan(&exists); err != nil {
		return time.Time{}, err
	}
	if !exists {
		return time.Time{}, ErrNotFound
	}
	return time.Time{}, fmt.Errorf("%w: status is no longer %s", ErrInvalidTransition, from)
}

func (r *repoPG) UpdateDisplay(ctx context.Context, s *Slot) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE call_slot SET name = $2, furigana_name = $3, bed_label = $4, updated_by = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Name, s.FuriganaName, s.BedLabel, s.UpdatedBy,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM call_slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteBySession(ctx context.Context, sessionKey string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM call_slot WHERE session_key = $1`, sessionKey)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID, &s.SessionKey, &s.Facility, &s.Name, &s.FuriganaName, &s.BedLabel, &s.Status,
		&s.IsTemporary, &s.MasterPatientRef, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]*Slot, error) {
	slots := []*Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
