package geometry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"
)

// PolygonFromGeoJSON accepts a Polygon or a single-member MultiPolygon.
func PolygonFromGeoJSON(g *geojson.Geometry) (orb.Polygon, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrInvalidGeometry)
	}
	var coords [][][]float64
	switch {
	case g.IsPolygon():
		coords = g.Polygon
	case g.IsMultiPolygon() && len(g.MultiPolygon) == 1:
		coords = g.MultiPolygon[0]
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type: %s", ErrInvalidGeometry, g.Type)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: empty polygon coordinates", ErrInvalidGeometry)
	}

	poly := make(orb.Polygon, len(coords))
	for i, loop := range coords {
		ring := make(orb.Ring, len(loop))
		for j, c := range loop {
			if len(c) < 2 {
				return nil, fmt.Errorf("%w: short position in ring %d", ErrInvalidGeometry, i)
			}
			ring[j] = orb.Point{c[0], c[1]}
		}
		poly[i] = ring
	}
	return poly, nil
}

func PolygonToGeoJSON(p orb.Polygon) *geojson.Geometry {
	coords := make([][][]float64, len(p))
	for i, ring := range p {
		coords[i] = make([][]float64, len(ring))
		for j, pt := range ring {
			coords[i][j] = []float64{pt.Lon(), pt.Lat()}
		}
	}
	return geojson.NewPolygonGeometry(coords)
}

func PointFromGeoJSON(g *geojson.Geometry) (orb.Point, error) {
	if g == nil || !g.IsPoint() || len(g.Point) < 2 {
		return orb.Point{}, fmt.Errorf("%w: expected a point", ErrInvalidGeometry)
	}
	return orb.Point{g.Point[0], g.Point[1]}, nil
}

// Coordinates returns the [lon, lat] pair sent to the store.
func Coordinates(p orb.Point) []float64 {
	return []float64{p.Lon(), p.Lat()}
}

// NamedPolygon is a polygon read from a GeoJSON document with its name property.
type NamedPolygon struct {
	Name    string
	Polygon orb.Polygon
}

// ParsePolygons reads the polygons of a FeatureCollection, a Feature or a
// bare Geometry. Collection members that are not polygons are skipped.
func ParsePolygons(data []byte) ([]NamedPolygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var res []NamedPolygon
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		for _, f := range fc.Features {
			p, err := PolygonFromGeoJSON(f.Geometry)
			if err != nil {
				continue
			}
			name, _ := f.PropertyString("name")
			res = append(res, NamedPolygon{Name: name, Polygon: p})
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		p, err := PolygonFromGeoJSON(f.Geometry)
		if err != nil {
			return nil, err
		}
		name, _ := f.PropertyString("name")
		res = append(res, NamedPolygon{Name: name, Polygon: p})
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		p, err := PolygonFromGeoJSON(g)
		if err != nil {
			return nil, err
		}
		res = append(res, NamedPolygon{Polygon: p})
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: no polygon found", ErrInvalidGeometry)
	}
	return res, nil
}

// LoadPolygonsFile reads ParsePolygons input from path.
func LoadPolygonsFile(path string) ([]NamedPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParsePolygons(data)
}
