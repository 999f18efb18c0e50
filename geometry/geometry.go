// Package geometry wraps the area, containment and GeoJSON conversions the
// sync controller needs. Areas are geodesic and expressed in hectares.
package geometry

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/shopspring/decimal"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

const squareMetersPerHectare = 10000

// AreaHectares returns the geodesic area of p in hectares rounded to two decimals.
func AreaHectares(p orb.Polygon) decimal.Decimal {
	return rawHectares(p).Round(2)
}

func rawHectares(p orb.Polygon) decimal.Decimal {
	if len(p) == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(geo.Area(p) / squareMetersPerHectare)
}

// Contains reports whether point lies inside p (planar test, holes respected).
func Contains(p orb.Polygon, point orb.Point) bool {
	return planar.PolygonContains(p, point)
}

// WKT renders p for log lines.
func WKT(p orb.Polygon) string {
	return wkt.MarshalString(p)
}

// Closed returns p with every ring closed.
func Closed(p orb.Polygon) orb.Polygon {
	res := make(orb.Polygon, len(p))
	for i, r := range p {
		ring := append(orb.Ring{}, r...)
		if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}
		res[i] = ring
	}
	return res
}

// loopFromRing builds a normalized s2 loop from an outer ring.
func loopFromRing(r orb.Ring) (*s2.Loop, error) {
	pts := make([]s2.Point, 0, len(r))
	var prev orb.Point
	for i, p := range r {
		if i > 0 && p.Equal(prev) {
			continue
		}
		if i == len(r)-1 && i > 0 && p.Equal(r[0]) {
			break
		}
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon())))
		prev = p
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: ring has %d distinct vertices", ErrInvalidGeometry, len(pts))
	}
	loop := s2.LoopFromPoints(pts)
	if err := loop.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	loop.Normalize()
	return loop, nil
}
