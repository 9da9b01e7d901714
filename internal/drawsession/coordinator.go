// Package drawsession governs the lifecycle of drawing a search polygon
// on the map, bridging the external drawing widget into the query
// builder's input.
package drawsession

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rkm/stac-area-search/internal/search"
	"github.com/rkm/stac-area-search/pkg/geojson"
)

// ErrUnsupportedGeometry is returned when the drawing widget reports a
// shape that is not a single polygon. The session stays in Drawing so the
// user can redraw.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// State is a draw-session phase.
type State int

const (
	Idle State = iota
	Drawing
	Captured
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Captured:
		return "captured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DrawSurface is the external map-drawing collaborator. ActivateDraw puts
// the map into polygon-drawing mode with a one-shot completion callback;
// DeactivateDraw removes the drawing affordance and the callback with it.
// Every activation is paired with a deactivation on state exit so no
// listener dangles.
type DrawSurface interface {
	ActivateDraw(onComplete func(*geojson.Geometry))
	DeactivateDraw()
}

// Coordinator is the draw-session state machine. It owns its state
// exclusively; the drawing widget reports completions via
// CompletePolygon.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	area    search.Area
	surface DrawSurface
	active  bool // drawing mode currently activated on the surface
	logger  *slog.Logger
}

// NewCoordinator creates an idle coordinator over the given surface.
func NewCoordinator(surface DrawSurface, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		state:   Idle,
		surface: surface,
		logger:  logger,
	}
}

// State returns the current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Begin starts (or restarts) a drawing session. From Captured this
// discards the prior area: last drawn wins.
func (c *Coordinator) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Drawing {
		return
	}

	// Pair every activation with a deactivation: a redraw tears the old
	// listener down before installing a new one.
	if c.active {
		c.surface.DeactivateDraw()
	}

	c.area = nil
	c.state = Drawing
	c.active = true
	c.logger.Debug("draw session started")
	c.surface.ActivateDraw(func(g *geojson.Geometry) {
		if err := c.CompletePolygon(g); err != nil {
			c.logger.Warn("rejected drawn shape", "error", err)
		}
	})
}

// CompletePolygon accepts a completed drawing from the surface. Only a
// single polygon is usable as a search area; anything else fails with
// ErrUnsupportedGeometry and leaves the session in Drawing.
func (c *Coordinator) CompletePolygon(g *geojson.Geometry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Drawing {
		return fmt.Errorf("polygon completed in %s state, ignoring", c.state)
	}

	if g == nil || g.Type != "Polygon" {
		kind := "nil"
		if g != nil {
			kind = g.Type
		}
		return fmt.Errorf("%w: got %s, want Polygon", ErrUnsupportedGeometry, kind)
	}

	rings, err := g.Polygon()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedGeometry, err)
	}

	extent, err := g.BBox()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedGeometry, err)
	}

	c.area = search.Area(rings)
	c.state = Captured
	c.logger.Debug("search area captured", "rings", len(rings), "extent", extent)
	return nil
}

// Area returns the captured search area, or false if drawing has not
// completed.
func (c *Coordinator) Area() (search.Area, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Captured {
		return nil, false
	}
	return c.area, true
}

// Submitted tells the coordinator the search flow has been submitted:
// the drawing affordance is removed from the map but the captured area is
// kept for the in-flight search.
func (c *Coordinator) Submitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.surface.DeactivateDraw()
		c.active = false
	}
}

// Reset returns to Idle from any state, tearing down the drawing mode and
// discarding any captured area.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.surface.DeactivateDraw()
		c.active = false
	}
	c.area = nil
	c.state = Idle
	c.logger.Debug("draw session reset")
}
