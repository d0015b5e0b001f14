package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callboard/callboard/internal/platform/db"
	"github.com/callboard/callboard/pkg/pagination"
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

const masterCols = `id, facility, name, furigana_name, bed_label, day_group, shift, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, m *MasterPatient) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO master_patient (id, facility, name, furigana_name, bed_label, day_group, shift)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		m.ID, m.Facility, m.Name, m.FuriganaName, m.BedLabel, m.DayGroup, m.Shift,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) CreateBatch(ctx context.Context, ms []*MasterPatient) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		for _, m := range ms {
			if err := r.Create(ctx, m); err != nil {
				return fmt.Errorf("insert %s: %w", m.Name, err)
			}
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MasterPatient, error) {
	m, err := scanMaster(r.conn(ctx).QueryRow(ctx, `SELECT `+masterCols+` FROM master_patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *repoPG) Update(ctx context.Context, m *MasterPatient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE master_patient SET facility = $2, name = $3, furigana_name = $4, bed_label = $5,
			day_group = $6, shift = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Facility, m.Name, m.FuriganaName, m.BedLabel, m.DayGroup, m.Shift,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM master_patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Facility != "" {
		add("facility", f.Facility)
	}
	if f.DayGroup != "" {
		add("day_group", f.DayGroup)
	}
	if f.Shift != "" {
		add("shift", f.Shift)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*MasterPatient, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM master_patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+masterCols+` FROM master_patient`+where+
		` ORDER BY facility, day_group, shift, bed_label `+page.SQL(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	ms, err := collectMasters(rows)
	return ms, total, err
}

func (r *repoPG) ListAll(ctx context.Context, f Filter) ([]*MasterPatient, error) {
	where, args := whereClause(f)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+masterCols+` FROM master_patient`+where+
		` ORDER BY facility, day_group, shift, bed_label`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMasters(rows)
}

func (r *repoPG) ReplaceFacility(ctx context.Context, facility string, ms []*MasterPatient) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM master_patient WHERE facility = $1`, facility); err != nil {
			return err
		}
		for _, m := range ms {
			if err := r.Create(ctx, m); err != nil {
				return fmt.Errorf("insert %s: %w", m.Name, err)
			}
		}
		return nil
	})
}

func scanMaster(row pgx.Row) (*MasterPatient, error) {
	var m MasterPatient
	err := row.Scan(&m.ID, &m.Facility, &m.Name, &m.FuriganaName, &m.BedLabel, &m.DayGroup, &m.Shift,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMasters(rows pgx.Rows) ([]*MasterPatient, error) {
	ms := []*MasterPatient{}
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}
