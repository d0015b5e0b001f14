package layout

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("bed not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Point is a bed's position on the floor plan. Coordinates are fractions of
// the plan's width and height, so 0 <= x, y <= 1.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Position maps to the bed_layout table.
type Position struct {
	Facility  string    `db:"facility" json:"facility"`
	BedLabel  string    `db:"bed_label" json:"bed_label"`
	X         float64   `db:"x" json:"x"`
	Y         float64   `db:"y" json:"y"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Layout is a facility's floor plan keyed by bed label.
type Layout map[string]Point
