package controller

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"smartvision/metrics"
	"smartvision/models"
)

func TestOperationMetrics(t *testing.T) {
	it(func() {
		ctx := context.Background()
		seedZones(t)
		created := metrics.OperationsTotal.WithLabelValues(models.EntityZone, "create", "ok")
		rejected := metrics.OperationsTotal.WithLabelValues(models.EntityZone, "draw", "rejected")
		beforeCreated := testutil.ToFloat64(created)
		beforeRejected := testutil.ToFloat64(rejected)

		if _, err := ctrl.CreateZone(ctx, "Zone A", inside); err != nil {
			t.Fatalf("Unexpected create error: %v", err)
		}
		ctrl.HandleDrawCreated(outside)

		if got := testutil.ToFloat64(created) - beforeCreated; got != 1 {
			t.Errorf("Expected 1 create, got %v", got)
		}
		if got := testutil.ToFloat64(rejected) - beforeRejected; got != 1 {
			t.Errorf("Expected 1 rejected draw, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.Entities.WithLabelValues(models.EntityZone)); got != 1 {
			t.Errorf("Expected zone gauge 1, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.ZoneAreaHectares); got != 0.25 {
			t.Errorf("Expected 0.25 ha, got %v", got)
		}
	})
}
