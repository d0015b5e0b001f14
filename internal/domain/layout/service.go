package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/platform/websocket"
)

const EventLayoutUpdated = "layout.updated"

type Service struct {
	repo   Repository
	pub    websocket.EventPublisher
	logger zerolog.Logger
}

// NewService returns a layout service. pub may be nil, in which case
// layout changes are not broadcast.
func NewService(repo Repository, pub websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		logger: logger.With().Str("component", "layout").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, facility string) (Layout, error) {
	positions, err := s.repo.Get(ctx, facility)
	if err != nil {
		return nil, err
	}
	l := make(Layout, len(positions))
	for _, p := range positions {
		l[p.BedLabel] = Point{X: p.X, Y: p.Y}
	}
	return l, nil
}

func validPoint(p Point) bool {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Replace stores l as the facility's complete layout.
func (s *Service) Replace(ctx context.Context, facility string, l Layout) error {
	if strings.TrimSpace(facility) == "" {
		return fmt.Errorf("%w: facility is required", ErrInvalidInput)
	}
	for bed, pt := range l {
		if strings.TrimSpace(bed) == "" {
			return fmt.Errorf("%w: empty bed label", ErrInvalidInput)
		}
		if !validPoint(pt) {
			return fmt.Errorf("%w: bed %s: coordinates must be within [0,1]", ErrInvalidInput, bed)
		}
	}
	if err := s.repo.Replace(ctx, facility, l); err != nil {
		return fmt.Errorf("replace layout: %w", err)
	}
	s.broadcast(ctx, facility, l)
	return nil
}

func (s *Service) DeleteBed(ctx context.Context, facility, bedLabel string) error {
	if err := s.repo.DeleteBed(ctx, facility, bedLabel); err != nil {
		return err
	}
	l, err := s.Get(ctx, facility)
	if err != nil {
		s.logger.Warn().Err(err).Str("facility", facility).Msg("reload layout after delete")
		return nil
	}
	s.broadcast(ctx, facility, l)
	return nil
}

func (s *Service) broadcast(ctx context.Context, facility string, l Layout) {
	if s.pub == nil {
		return
	}
	data, err := json.Marshal(l)
	if err != nil {
		return
	}
	err = s.pub.Publish(ctx, websocket.Event{
		Type:         EventLayoutUpdated,
		Topic:        "facility:" + facility,
		ResourceType: "BedLayout",
		ResourceID:   facility,
		Timestamp:    time.Now().UTC(),
		Data:         data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("facility", facility).Msg("broadcast layout")
	}
}
