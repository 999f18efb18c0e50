package geometry

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"smartvision/models"
)

const minSide = 1e-9

type indexedZone struct {
	zone models.Zone
	rect rtreego.Rect
}

func (z *indexedZone) Bounds() rtreego.Rect {
	return z.rect
}

// ZoneIndex finds the zones containing a point. Bounding boxes are
// searched first, then the polygons.
type ZoneIndex struct {
	tree *rtreego.Rtree
}

// NewZoneIndex indexes zones with a usable geometry.
func NewZoneIndex(zones []models.Zone) *ZoneIndex {
	objs := make([]rtreego.Spatial, 0, len(zones))
	for _, z := range zones {
		if len(z.Geometry) == 0 || len(z.Geometry[0]) == 0 {
			continue
		}
		b := z.Geometry.Bound()
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min.Lon(), b.Min.Lat()},
			[]float64{max(b.Max.Lon()-b.Min.Lon(), minSide), max(b.Max.Lat()-b.Min.Lat(), minSide)},
		)
		if err != nil {
			continue
		}
		objs = append(objs, &indexedZone{zone: z, rect: rect})
	}
	return &ZoneIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// Locate returns the zones containing p, ordered by id.
func (idx *ZoneIndex) Locate(p orb.Point) []models.Zone {
	var res []models.Zone
	for _, item := range idx.tree.SearchIntersect(rtreego.Point{p.Lon(), p.Lat()}.ToRect(minSide)) {
		z := item.(*indexedZone).zone
		if Contains(z.Geometry, p) {
			res = append(res, z)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Department returns the name of the lowest-id zone containing p, or "".
func (idx *ZoneIndex) Department(p orb.Point) string {
	if zones := idx.Locate(p); len(zones) > 0 {
		return zones[0].Name
	}
	return ""
}

func (idx *ZoneIndex) Size() int {
	return idx.tree.Size()
}
