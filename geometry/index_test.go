package geometry

import (
	"testing"

	"github.com/paulmach/orb"

	"smartvision/models"
)

func TestZoneIndex(t *testing.T) {
	idx := NewZoneIndex([]models.Zone{
		{ID: 2, Name: "Outer", Geometry: square(9.8810, 37.2355, 0.0015)},
		{ID: 1, Name: "Labo", Geometry: square(9.8815, 37.2360, 0.0005)},
		{ID: 3, Name: "Empty"},
	})
	if idx.Size() != 2 {
		t.Errorf("Expected 2 indexed zones, got %d", idx.Size())
	}

	testCases := []struct {
		name   string
		point  orb.Point
		expect string
		count  int
	}{
		{name: "Nested", point: orb.Point{9.8817, 37.2362}, expect: "Labo", count: 2},
		{name: "Outer only", point: orb.Point{9.8812, 37.2357}, expect: "Outer", count: 1},
		{name: "Nowhere", point: orb.Point{9.8700, 37.2300}, expect: "", count: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := idx.Department(tc.point); got != tc.expect {
				t.Errorf("Expected %q, got %q", tc.expect, got)
			}
			if got := len(idx.Locate(tc.point)); got != tc.count {
				t.Errorf("Expected %d zones, got %d", tc.count, got)
			}
		})
	}
}
