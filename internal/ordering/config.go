package ordering

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/listorder/internal/query"
)

// DefaultColumn is the position field used when Config.Column is empty.
const DefaultColumn = "position"

// ErrInvalidConfig is returned by New for unusable configurations.
var ErrInvalidConfig = errors.New("invalid list configuration")

// Placement decides where BeforeCreate puts a new record.
type Placement int

const (
	// Bottom appends new records after the last one.
	Bottom Placement = iota
	// Top puts new records first and shifts the rest down.
	Top
)

func (p Placement) String() string {
	switch p {
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	default:
		return fmt.Sprintf("Placement(%d)", int(p))
	}
}

// ParsePlacement accepts "bottom", "top" or the empty string (bottom).
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(s) {
	case "", "bottom":
		return Bottom, nil
	case "top":
		return Top, nil
	default:
		return Bottom, fmt.Errorf("%w: unknown placement %q", ErrInvalidConfig, s)
	}
}

// Config describes one list.
type Config struct {
	// Column is the integer field holding the position.
	Column string
	// Scope lists the fields whose values partition the collection, in
	// order. Empty means the whole collection is one list.
	Scope []string
	// Placement applies to BeforeCreate.
	Placement Placement
}

// normalize fills defaults and validates field names.
func (c Config) normalize() (Config, error) {
	if c.Column == "" {
		c.Column = DefaultColumn
	}
	if !query.ValidField(c.Column) {
		return c, fmt.Errorf("%w: position column %q is not an identifier", ErrInvalidConfig, c.Column)
	}
	seen := map[string]bool{c.Column: true}
	for _, f := range c.Scope {
		if !query.ValidField(f) {
			return c, fmt.Errorf("%w: scope field %q is not an identifier", ErrInvalidConfig, f)
		}
		if seen[f] {
			return c, fmt.Errorf("%w: field %q appears twice", ErrInvalidConfig, f)
		}
		seen[f] = true
	}
	if c.Placement != Bottom && c.Placement != Top {
		return c, fmt.Errorf("%w: unknown placement %s", ErrInvalidConfig, c.Placement)
	}
	c.Scope = append([]string(nil), c.Scope...)
	return c, nil
}
