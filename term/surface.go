package term

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/paulmach/orb"
)

// Surface stands in for the drawing surface. Shapes are preloaded from
// files and locations are typed as "lon,lat".
type Surface struct {
	console *Console

	mu        sync.Mutex
	drawing   bool
	draft     orb.Polygon
	edits     map[int64]orb.Polygon
	editing   map[int64]bool
	suspended bool
}

func NewSurface(console *Console) *Surface {
	return &Surface{
		console: console,
		edits:   make(map[int64]orb.Polygon),
		editing: make(map[int64]bool),
	}
}

// SetDraft sets the shape the next completed gesture yields.
func (s *Surface) SetDraft(p orb.Polygon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = p
}

// SetEdited sets the shape FinishEditing returns for id.
func (s *Surface) SetEdited(id int64, p orb.Polygon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[id] = p
}

func (s *Surface) StartPolygon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = true
}

func (s *Surface) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}

func (s *Surface) CompleteShape() (orb.Polygon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
	if len(s.draft) == 0 {
		return nil, false
	}
	p := s.draft
	s.draft = nil
	return p, true
}

func (s *Surface) EnableEditing(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing[id] = true
}

func (s *Surface) FinishEditing(id int64) (orb.Polygon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.editing, id)
	p, ok := s.edits[id]
	delete(s.edits, id)
	return p, ok
}

func (s *Surface) SetSaveControl(visible bool) {
	log.Debugf("Save control visible: %v", visible)
}

func (s *Surface) SuspendPopups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

func (s *Surface) RestorePopups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

func (s *Surface) PopupsSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// PickLocation reads a "lon,lat" line, asking again on bad input.
func (s *Surface) PickLocation(ctx context.Context) (orb.Point, error) {
	for {
		line, err := s.console.ReadLine(ctx, "Location (lon,lat): ")
		if err != nil {
			return orb.Point{}, err
		}
		p, err := ParsePoint(line)
		if err != nil {
			log.Warnf("%v", err)
			continue
		}
		return p, nil
	}
}

// ParsePoint parses "lon,lat".
func ParsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("expected lon,lat, got %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q: %w", parts[0], err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q: %w", parts[1], err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("location out of range: %v,%v", lon, lat)
	}
	return orb.Point{lon, lat}, nil
}
