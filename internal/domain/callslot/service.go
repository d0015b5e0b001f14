package callslot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/callboard/callboard/pkg/natsort"
)

// ChangePublisher announces that a session's contents changed so live
// queries re-read it.
type ChangePublisher interface {
	Publish(ctx context.Context, key string) error
}

type Service struct {
	repo      Repository
	changes   ChangePublisher
	notifiers []Notifier
	logger    zerolog.Logger
}

func NewService(repo Repository, changes ChangePublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		changes: changes,
		logger:  logger.With().Str("component", "callslot").Logger(),
	}
}

// AddNotifier registers a receiver for slot events.
func (s *Service) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func actorPtr(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}

// Create adds an ad-hoc slot to a session. The new slot always starts in
// treatment and is marked temporary.
func (s *Service) Create(ctx context.Context, sessionKey string, slot *Slot, actor string) error {
	if _, err := ParseSessionKey(sessionKey); err != nil {
		return err
	}
	if strings.TrimSpace(slot.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(slot.BedLabel) == "" {
		return fmt.Errorf("%w: bed_label is required", ErrInvalidInput)
	}

	slot.SessionKey = sessionKey
	slot.Status = StatusInTreatment
	slot.IsTemporary = true
	slot.MasterPatientRef = nil
	slot.UpdatedBy = actorPtr(actor)
	if err := s.repo.Create(ctx, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	s.committed(ctx, sessionKey, eventFor(EventCreated, slot, actor))
	return nil
}

// CreateBatch inserts roster-derived slots into one session atomically.
// Every slot starts in treatment; masters already present are skipped.
func (s *Service) CreateBatch(ctx context.Context, sessionKey string, slots []*Slot, actor string) (int, error) {
	key, err := ParseSessionKey(sessionKey)
	if err != nil {
		return 0, err
	}
	if len(slots) == 0 {
		return 0, nil
	}
	for _, slot := range slots {
		slot.SessionKey = sessionKey
		slot.Facility = key.Facility
		slot.Status = StatusInTreatment
		slot.IsTemporary = false
		slot.UpdatedBy = actorPtr(actor)
	}

	n, err := s.repo.CreateBatch(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("create slots: %w", err)
	}
	if n > 0 {
		s.publishChange(ctx, sessionKey)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListSession returns the session's slots ordered by bed label.
func (s *Service) ListSession(ctx context.Context, sessionKey string) ([]*Slot, error) {
	if _, err := ParseSessionKey(sessionKey); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListBySession(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	natsort.Slice(slots, func(sl *Slot) string { return sl.BedLabel })
	return slots, nil
}

// Transition moves a slot to target. A move to the current status succeeds
// without writing. Illegal edges fail with ErrInvalidTransition before any
// write, as does a slot whose status changed after it was read.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target Status, actor string) (*Slot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	evType, err := checkTransition(slot.Status, target)
	if err != nil {
		return nil, err
	}
	if evType == "" {
		return slot, nil
	}

	from := slot.Status
	at, err := s.repo.UpdateStatus(ctx, id, from, target, actorPtr(actor))
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	slot.Status = target
	slot.UpdatedAt = at
	slot.UpdatedBy = actorPtr(actor)

	s.logger.Info().
		Str("slot_id", id.String()).
		Str("session_key", slot.SessionKey).
		Str("from", string(from)).
		Str("to", string(target)).
		Str("actor", actor).
		Msg("status changed")

	ev := eventFor(evType, slot, actor)
	ev.From = from
	s.committed(ctx, slot.SessionKey, ev)
	return slot, nil
}

// DisplayUpdate carries the editable display fields of a slot. Nil fields
// are left unchanged.
type DisplayUpdate struct {
	Name         *string `json:"name"`
	FuriganaName *string `json:"furigana_name"`
	BedLabel     *string `json:"bed_label"`
}

// UpdateDisplay edits name, furigana and bed label. Status and session are
// never changed here.
func (s *Service) UpdateDisplay(ctx context.Context, id uuid.UUID, upd DisplayUpdate, actor string) (*Slot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		slot.Name = *upd.Name
	}
	if upd.BedLabel != nil {
		if strings.TrimSpace(*upd.BedLabel) == "" {
			return nil, fmt.Errorf("%w: bed_label must not be empty", ErrInvalidInput)
		}
		slot.BedLabel = *upd.BedLabel
	}
	if upd.FuriganaName != nil {
		if *upd.FuriganaName == "" {
			slot.FuriganaName = nil
		} else {
			slot.FuriganaName = upd.FuriganaName
		}
	}
	slot.UpdatedBy = actorPtr(actor)

	if err := s.repo.UpdateDisplay(ctx, slot); err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}
	s.committed(ctx, slot.SessionKey, eventFor(EventUpdated, slot, actor))
	return slot, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	ev := eventFor(EventDeleted, slot, actor)
	ev.Timestamp = time.Now().UTC()
	s.committed(ctx, slot.SessionKey, ev)
	return nil
}

// ClearSession deletes every slot of one session and returns how many were
// removed. Other sessions are untouched.
func (s *Service) ClearSession(ctx context.Context, sessionKey string, actor string) (int64, error) {
	key, err := ParseSessionKey(sessionKey)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteBySession(ctx, sessionKey)
	if err != nil {
		return 0, fmt.Errorf("clear session: %w", err)
	}

	s.logger.Info().Str("session_key", sessionKey).Int64("deleted", n).Str("actor", actor).Msg("session cleared")
	s.committed(ctx, sessionKey, Event{
		Type:       EventSessionCleared,
		SessionKey: sessionKey,
		Facility:   key.Facility,
		Actor:      actor,
		Timestamp:  time.Now().UTC(),
	})
	return n, nil
}

// committed runs the post-write side effects. Failures are logged: the
// write already succeeded and live queries recover on the next change.
func (s *Service) committed(ctx context.Context, sessionKey string, ev Event) {
	s.publishChange(ctx, sessionKey)
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("event", ev.Type).Msg("event delivery failed")
		}
	}
}

func (s *Service) publishChange(ctx context.Context, sessionKey string) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, sessionKey); err != nil {
		s.logger.Warn().Err(err).Str("session_key", sessionKey).Msg("change notification failed")
	}
}
