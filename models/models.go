package models

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// Zone is a named department polygon. ID is zero until the store assigns one.
type Zone struct {
	ID       int64
	Name     string
	Area     decimal.Decimal // hectares, two decimals
	Geometry orb.Polygon
}

func (z Zone) Key() int64 {
	return z.ID
}

// Label is the text shown on the map shape and in the sidebar row.
func (z Zone) Label() string {
	return fmt.Sprintf("%s (%s ha)", z.Name, z.Area.StringFixed(2))
}

type Camera struct {
	ID             int64
	Name           string
	URL            string
	StreamURL      string
	Location       orb.Point // lon, lat
	DepartmentName string    // display only
}

func (c Camera) Key() int64 {
	return c.ID
}

func (c Camera) Label() string {
	dept := c.DepartmentName
	if dept == "" {
		dept = "no department"
	}
	return fmt.Sprintf("%s [%s]", c.Name, dept)
}

// Stats is the running aggregate over the persisted zones.
type Stats struct {
	Count     int
	TotalArea decimal.Decimal
	Coverage  int // percent of the reference boundary, 0..100
}

const (
	EntityZone   = "zone"
	EntityCamera = "camera"

	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// Change is one event of the store change feed.
type Change struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id"`
}
