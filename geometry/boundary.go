package geometry

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// Boundary is the fixed reference polygon every zone must lie within.
type Boundary struct {
	Name    string
	Polygon orb.Polygon
	Area    decimal.Decimal // hectares, not rounded

	loop *s2.Loop
}

// campus is the managed site outline (lon, lat).
var campus = orb.Polygon{{
	{9.882540055582894, 37.23716617665191},
	{9.880526669259268, 37.236722457011595},
	{9.88096557354379, 37.23552994753754},
	{9.882756024356922, 37.235901568792},
	{9.882978959867387, 37.236140071020344},
	{9.882547022316487, 37.2371606301723},
	{9.882540055582894, 37.23716617665191},
}}

func NewBoundary(name string, p orb.Polygon) (*Boundary, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty boundary", ErrInvalidGeometry)
	}
	loop, err := loopFromRing(p[0])
	if err != nil {
		return nil, fmt.Errorf("boundary %q: %w", name, err)
	}
	return &Boundary{
		Name:    name,
		Polygon: p,
		Area:    rawHectares(p),
		loop:    loop,
	}, nil
}

// DefaultBoundary returns the built-in campus boundary.
func DefaultBoundary() *Boundary {
	b, err := NewBoundary("ISGB", campus)
	if err != nil {
		panic(err)
	}
	return b
}

// Within reports whether the outer ring of p lies inside the boundary.
// Geometries that do not form a valid loop are never within.
func (b *Boundary) Within(p orb.Polygon) bool {
	if len(p) == 0 {
		return false
	}
	loop, err := loopFromRing(p[0])
	if err != nil {
		log.Debugf("Rejecting geometry %s: %v", WKT(p), err)
		return false
	}
	return b.loop.Contains(loop)
}

// Coverage returns min(100, round(total / Area * 100)), never negative.
func (b *Boundary) Coverage(total decimal.Decimal) int {
	if !total.IsPositive() || !b.Area.IsPositive() {
		return 0
	}
	pct := total.Div(b.Area).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// LoadBoundaryFile reads a GeoJSON Feature, FeatureCollection or Geometry file.
func LoadBoundaryFile(path string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}
	return ParseBoundary(path, data)
}

// ParseBoundary takes the first polygon found in a GeoJSON document. A
// name property overrides name.
func ParseBoundary(name string, data []byte) (*Boundary, error) {
	polys, err := ParsePolygons(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundary: %w", err)
	}
	if polys[0].Name != "" {
		name = polys[0].Name
	}
	return NewBoundary(name, polys[0].Polygon)
}
