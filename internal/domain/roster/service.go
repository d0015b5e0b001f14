package roster

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/pkg/natsort"
	"github.com/callboard/callboard/pkg/pagination"
)

// SlotBatcher inserts roster-derived slots into a session.
type SlotBatcher interface {
	CreateBatch(ctx context.Context, sessionKey string, slots []*callslot.Slot, actor string) (int, error)
}

type Service struct {
	repo   Repository
	slots  SlotBatcher
	logger zerolog.Logger
}

func NewService(repo Repository, slots SlotBatcher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		slots:  slots,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, m *MasterPatient) error {
	if err := m.validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create master patient: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MasterPatient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *MasterPatient) error {
	if err := m.validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*MasterPatient, int, error) {
	return s.repo.List(ctx, f, page)
}

// LoadResult summarises one roster load.
type LoadResult struct {
	SessionKey string   `json:"session_key"`
	DayGroup   DayGroup `json:"day_group"`
	Matched    int      `json:"matched"`
	Inserted   int      `json:"inserted"`
}

// LoadSession copies the masters scheduled for facility, date and shift into
// that session. Masters already in the session are skipped, so loading twice
// never duplicates.
func (s *Service) LoadSession(ctx context.Context, facility string, date time.Time, shift, actor string) (*LoadResult, error) {
	group, err := DayGroupFor(date)
	if err != nil {
		return nil, err
	}
	key := callslot.NewSessionKey(date, facility, shift)
	if _, err := callslot.ParseSessionKey(key.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	masters, err := s.repo.ListAll(ctx, Filter{Facility: facility, DayGroup: group, Shift: shift})
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	natsort.Slice(masters, func(m *MasterPatient) string { return m.BedLabel })

	slots := make([]*callslot.Slot, 0, len(masters))
	for _, m := range masters {
		ref := m.ID
		slots = append(slots, &callslot.Slot{
			Name:             m.Name,
			FuriganaName:     m.FuriganaName,
			BedLabel:         m.BedLabel,
			MasterPatientRef: &ref,
		})
	}

	n, err := s.slots.CreateBatch(ctx, key.String(), slots, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_key", key.String()).
		Str("day_group", string(group)).
		Int("matched", len(masters)).
		Int("inserted", n).
		Msg("roster loaded")

	return &LoadResult{SessionKey: key.String(), DayGroup: group, Matched: len(masters), Inserted: n}, nil
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Replaced bool       `json:"replaced"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Import reads an .xlsx roster for facility. With replace the facility's
// existing roster is swapped out atomically; otherwise rows are appended.
// Nothing is written when any row is invalid.
func (s *Service) Import(ctx context.Context, facility string, r io.Reader, replace bool) (*ImportResult, error) {
	if facility == "" {
		return nil, fmt.Errorf("%w: facility is required", ErrInvalidInput)
	}
	ms, rowErrs, err := ReadWorkbook(r, facility)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(rowErrs) > 0 {
		return &ImportResult{Errors: rowErrs}, nil
	}

	if replace {
		err = s.repo.ReplaceFacility(ctx, facility, ms)
	} else {
		err = s.repo.CreateBatch(ctx, ms)
	}
	if err != nil {
		return nil, fmt.Errorf("import roster: %w", err)
	}

	s.logger.Info().Str("facility", facility).Int("rows", len(ms)).Bool("replace", replace).Msg("roster imported")
	return &ImportResult{Imported: len(ms), Replaced: replace}, nil
}

// Export writes the roster matching f as .xlsx.
func (s *Service) Export(ctx context.Context, f Filter, w io.Writer) error {
	ms, err := s.repo.ListAll(ctx, f)
	if err != nil {
		return fmt.Errorf("list roster: %w", err)
	}
	return WriteWorkbook(w, ms)
}
