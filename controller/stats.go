package controller

import (
	"smartvision/metrics"
	"smartvision/models"
)

// Stats returns the aggregates over the confirmed zones.
func (c *Controller) Stats() models.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Controller) statsLocked() models.Stats {
	return models.Stats{
		Count:     len(c.zones),
		TotalArea: c.totalArea,
		Coverage:  c.boundary.Coverage(c.totalArea),
	}
}

// renderStatsLocked pushes the aggregates to the stats view and the gauges.
func (c *Controller) renderStatsLocked() {
	s := c.statsLocked()
	c.statsView.RenderStats(s)
	metrics.Entities.WithLabelValues(models.EntityZone).Set(float64(s.Count))
	metrics.ZoneAreaHectares.Set(s.TotalArea.InexactFloat64())
}
