package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"smartvision/geometry"
	"smartvision/models"
)

// Edit is a modified shape reported by the drawing surface.
type Edit struct {
	ID       int64
	Geometry orb.Polygon
}

// LoadZones rebuilds the zone layer, the sidebar and the aggregates from
// the store. On failure nothing is touched. Overlapping reloads run one
// after the other.
func (c *Controller) LoadZones(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	release, err := c.zonesLoad.enter(ctx, c.done)
	if err != nil {
		c.fail(models.EntityZone, "load", 0, "Loading zones", err)
		return err
	}
	defer release()

	zones, err := c.store.ListZones(ctx)
	if err != nil {
		c.fail(models.EntityZone, "load", 0, "Failed to load zones", err)
		return err
	}

	c.mu.Lock()
	c.zones = make(map[int64]models.Zone, len(zones))
	total := decimal.Zero
	for _, z := range zones {
		if z.ID == 0 {
			continue
		}
		if prev, ok := c.zones[z.ID]; ok {
			total = total.Sub(prev.Area)
		}
		c.zones[z.ID] = z
		total = total.Add(z.Area)
	}
	c.totalArea = total
	ordered := c.sortedZonesLocked()
	c.zoneLayer.Reset(ordered)
	c.zoneList.Reset(ordered)
	c.renderStatsLocked()
	c.mu.Unlock()

	c.record(models.EntityZone, "load", 0, nil)
	return nil
}

// BeginDraw arms a polygon gesture and shows the save control.
func (c *Controller) BeginDraw() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.surface.StartPolygon()
	c.surface.SetSaveControl(true)
	c.info("Draw the zone on the map, then save it")
	return nil
}

// HandleDrawCreated checks a finished shape against the reference
// boundary and holds it in the pending slot, replacing what was there.
func (c *Controller) HandleDrawCreated(geom orb.Polygon) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.boundary.Within(geom) {
		log.Debugf("Rejected drawn zone %s", geometry.WKT(geom))
		c.record(models.EntityZone, "draw", 0, ErrOutsideBoundary)
		c.notify.Notify(Notification{Level: LevelError, Message: fmt.Sprintf("Zone is outside the %s boundary", c.boundary.Name)})
		return ErrOutsideBoundary
	}

	c.mu.Lock()
	c.pending = geometry.Closed(geom)
	c.hasPending = true
	c.pendingSeq++
	c.mu.Unlock()

	c.info(fmt.Sprintf("Zone of %s ha ready, save it to name it", geometry.AreaHectares(geom).StringFixed(2)))
	return nil
}

// SavePending names and creates the pending zone. A gesture still in
// progress is completed first.
func (c *Controller) SavePending(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	release, err := c.inflight.acquire(keyPending)
	if err != nil {
		c.fail(models.EntityZone, "create", 0, "Saving zone", err)
		return err
	}
	defer release()

	if c.surface.Drawing() {
		if geom, ok := c.surface.CompleteShape(); ok {
			if err := c.HandleDrawCreated(geom); err != nil {
				return err
			}
		}
	}

	c.mu.Lock()
	geom, ok, seq := c.pending, c.hasPending, c.pendingSeq
	c.mu.Unlock()
	if !ok {
		c.record(models.EntityZone, "create", 0, ErrNoPending)
		c.warn("No zone to save")
		return ErrNoPending
	}

	name, err := c.prompt.PromptText(ctx, "Zone name", "")
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			c.discardPending(seq)
			c.surface.SetSaveControl(false)
		}
		c.fail(models.EntityZone, "create", 0, "Zone creation cancelled", err)
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		c.record(models.EntityZone, "create", 0, ErrValidation)
		c.warn("Zone name is required")
		return fmt.Errorf("%w: zone name is required", ErrValidation)
	}

	c.discardPending(seq)
	_, err = c.submitCreate(ctx, name, geom)
	return err
}

// discardPending empties the pending slot unless a newer shape replaced it.
func (c *Controller) discardPending(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingSeq == seq {
		c.pending = nil
		c.hasPending = false
	}
}

// CreateZone creates a zone without any prompt.
func (c *Controller) CreateZone(ctx context.Context, name string, geom orb.Polygon) (models.Zone, error) {
	if err := c.checkOpen(); err != nil {
		return models.Zone{}, err
	}
	if !c.boundary.Within(geom) {
		c.record(models.EntityZone, "create", 0, ErrOutsideBoundary)
		c.notify.Notify(Notification{Level: LevelError, Message: fmt.Sprintf("Zone %q is outside the %s boundary", name, c.boundary.Name)})
		return models.Zone{}, ErrOutsideBoundary
	}
	name = strings.TrimSpace(name)
	if name == "" {
		c.record(models.EntityZone, "create", 0, ErrValidation)
		c.warn("Zone name is required")
		return models.Zone{}, fmt.Errorf("%w: zone name is required", ErrValidation)
	}
	return c.submitCreate(ctx, name, geometry.Closed(geom))
}

func (c *Controller) submitCreate(ctx context.Context, name string, geom orb.Polygon) (models.Zone, error) {
	z := models.Zone{
		Name:     name,
		Area:     geometry.AreaHectares(geom),
		Geometry: geom,
	}
	id, err := c.store.SaveZone(ctx, z)
	if err != nil {
		c.fail(models.EntityZone, "create", 0, "Failed to add zone", err)
		return models.Zone{}, err
	}
	z.ID = id

	c.mu.Lock()
	if prev, ok := c.zones[id]; ok {
		c.totalArea = c.totalArea.Sub(prev.Area)
	}
	c.zones[id] = z
	c.totalArea = c.totalArea.Add(z.Area)
	c.zoneLayer.Put(z)
	c.zoneList.Put(z)
	c.renderStatsLocked()
	c.mu.Unlock()

	c.surface.SetSaveControl(false)
	c.record(models.EntityZone, "create", id, nil)
	c.success(fmt.Sprintf("Zone %q added", z.Name))
	return z, nil
}

// HandleEdited submits every edited shape. Shapes without a confirmed id
// are refused. The errors of all failed edits are joined.
func (c *Controller) HandleEdited(ctx context.Context, edits []Edit) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	var errs []error
	for _, e := range edits {
		if err := c.updateZone(ctx, e.ID, e.Geometry); err != nil {
			errs = append(errs, fmt.Errorf("zone %d: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}

// BeginShapeEdit puts a single zone in editable mode.
func (c *Controller) BeginShapeEdit(id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.Lock()
	_, ok := c.zones[id]
	if ok {
		c.editing[id] = true
	}
	c.mu.Unlock()
	if !ok {
		c.record(models.EntityZone, "edit", id, ErrNotFound)
		c.warn(fmt.Sprintf("Zone %d not found", id))
		return ErrNotFound
	}
	c.surface.EnableEditing(id)
	c.surface.SetSaveControl(true)
	c.info("Edit the zone shape, then save it")
	return nil
}

// SaveShapeEdit ends the editable mode of a zone and submits the
// result. An unchanged shape still submits the name prompt.
func (c *Controller) SaveShapeEdit(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.Lock()
	editing := c.editing[id]
	delete(c.editing, id)
	old, ok := c.zones[id]
	c.mu.Unlock()
	if !editing || !ok {
		c.record(models.EntityZone, "edit", id, ErrNotFound)
		c.warn(fmt.Sprintf("Zone %d is not being edited", id))
		return ErrNotFound
	}

	geom, changed := c.surface.FinishEditing(id)
	c.surface.SetSaveControl(false)
	if !changed {
		geom = old.Geometry
	}
	return c.updateZone(ctx, id, geom)
}

func (c *Controller) updateZone(ctx context.Context, id int64, geom orb.Polygon) error {
	c.mu.Lock()
	old, ok := c.zones[id]
	c.mu.Unlock()
	if id == 0 || !ok {
		c.record(models.EntityZone, "edit", id, ErrNotFound)
		c.warn(fmt.Sprintf("Zone %d not found", id))
		return ErrNotFound
	}

	release, err := c.inflight.acquire(zoneKey(id))
	if err != nil {
		c.fail(models.EntityZone, "edit", id, fmt.Sprintf("Updating zone %q", old.Name), err)
		return err
	}
	defer release()

	name := old.Name
	if c.renameOnEdit {
		v, err := c.prompt.PromptText(ctx, "New zone name", old.Name)
		if err != nil {
			c.fail(models.EntityZone, "edit", id, "Edit cancelled", err)
			return err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			c.record(models.EntityZone, "edit", id, ErrValidation)
			c.warn("Zone name is required")
			return fmt.Errorf("%w: zone name is required", ErrValidation)
		}
		name = v
	}

	geom = geometry.Closed(geom)
	updated := models.Zone{
		ID:       id,
		Name:     name,
		Area:     geometry.AreaHectares(geom),
		Geometry: geom,
	}
	if _, err := c.store.SaveZone(ctx, updated); err != nil {
		c.fail(models.EntityZone, "edit", id, fmt.Sprintf("Failed to update zone %q", old.Name), err)
		return err
	}

	c.mu.Lock()
	if prev, ok := c.zones[id]; ok {
		c.totalArea = c.totalArea.Sub(prev.Area)
	}
	c.zones[id] = updated
	c.totalArea = c.totalArea.Add(updated.Area)
	c.zoneLayer.Put(updated)
	c.zoneList.Put(updated)
	c.renderStatsLocked()
	c.mu.Unlock()

	c.record(models.EntityZone, "edit", id, nil)
	c.success(fmt.Sprintf("Zone %q updated", updated.Name))
	return nil
}

// HandleDeleted deletes every zone in ids. The errors of all failed
// deletions are joined.
func (c *Controller) HandleDeleted(ctx context.Context, ids []int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := c.deleteZone(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("zone %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// DeleteZone asks for confirmation, then deletes the zone.
func (c *Controller) DeleteZone(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	z, ok := c.Zone(id)
	if !ok {
		c.record(models.EntityZone, "delete", id, ErrNotFound)
		c.warn(fmt.Sprintf("Zone %d not found", id))
		return ErrNotFound
	}
	yes, err := c.prompt.Confirm(ctx, fmt.Sprintf("Delete zone %q?", z.Name))
	if err == nil && !yes {
		err = ErrCancelled
	}
	if err != nil {
		c.fail(models.EntityZone, "delete", id, "Deletion cancelled", err)
		return err
	}
	return c.deleteZone(ctx, id)
}

func (c *Controller) deleteZone(ctx context.Context, id int64) error {
	z, ok := c.Zone(id)
	if !ok {
		c.record(models.EntityZone, "delete", id, ErrNotFound)
		c.warn(fmt.Sprintf("Zone %d not found", id))
		return ErrNotFound
	}

	release, err := c.inflight.acquire(zoneKey(id))
	if err != nil {
		c.fail(models.EntityZone, "delete", id, fmt.Sprintf("Deleting zone %q", z.Name), err)
		return err
	}
	defer release()

	if err := c.store.DeleteZone(ctx, id); err != nil {
		c.fail(models.EntityZone, "delete", id, fmt.Sprintf("Failed to delete zone %q", z.Name), err)
		return err
	}

	c.mu.Lock()
	if prev, ok := c.zones[id]; ok {
		c.totalArea = c.totalArea.Sub(prev.Area)
		delete(c.zones, id)
	}
	delete(c.editing, id)
	c.zoneLayer.Remove(id)
	c.zoneList.Remove(id)
	c.renderStatsLocked()
	c.mu.Unlock()

	c.record(models.EntityZone, "delete", id, nil)
	c.success(fmt.Sprintf("Zone %q deleted", z.Name))
	return nil
}
