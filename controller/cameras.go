package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"smartvision/geometry"
	"smartvision/metrics"
	"smartvision/models"
)

// LoadCameras rebuilds the camera layer and the sidebar from the store.
// Department names the store omits are derived from the loaded zones.
// A reload already running is waited for, never refused.
func (c *Controller) LoadCameras(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	release, err := c.camerasLoad.enter(ctx, c.done)
	if err != nil {
		c.fail(models.EntityCamera, "load", 0, "Loading cameras", err)
		return err
	}
	defer release()

	cameras, err := c.store.ListCameras(ctx)
	if err != nil {
		c.fail(models.EntityCamera, "load", 0, "Failed to load cameras", err)
		return err
	}

	c.mu.Lock()
	c.cameras = make(map[int64]models.Camera, len(cameras))
	idx := geometry.NewZoneIndex(c.sortedZonesLocked())
	for _, cam := range cameras {
		if cam.ID == 0 {
			continue
		}
		if cam.DepartmentName == "" {
			cam.DepartmentName = idx.Department(cam.Location)
		}
		c.cameras[cam.ID] = cam
	}
	ordered := c.sortedCamerasLocked()
	c.cameraLayer.Reset(ordered)
	c.cameraList.Reset(ordered)
	metrics.Entities.WithLabelValues(models.EntityCamera).Set(float64(len(ordered)))
	c.mu.Unlock()

	c.record(models.EntityCamera, "load", 0, nil)
	return nil
}

// pickLocation suspends popups for one location pick and restores them
// on every path. The pick is bounded by the move timeout and by Close.
func (c *Controller) pickLocation(ctx context.Context) (orb.Point, error) {
	c.surface.SuspendPopups()
	defer c.surface.RestorePopups()

	if c.moveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.moveTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	p, err := c.surface.PickLocation(ctx)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return orb.Point{}, err
		}
		return orb.Point{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return p, nil
}

func (c *Controller) promptCamera(ctx context.Context, title string, cam models.Camera) (string, string, error) {
	values, err := c.prompt.PromptFields(ctx, title, []Field{
		{Name: "name", Label: "Camera name", Value: cam.Name},
		{Name: "url", Label: "Stream URL", Value: cam.URL},
	})
	if err != nil {
		return "", "", err
	}
	if len(values) != 2 {
		return "", "", fmt.Errorf("%w: expected 2 values, got %d", ErrValidation, len(values))
	}
	name, url := strings.TrimSpace(values[0]), strings.TrimSpace(values[1])
	if name == "" || url == "" {
		return "", "", fmt.Errorf("%w: camera name and stream URL are required", ErrValidation)
	}
	return name, url, nil
}

// PlaceCamera picks a location, prompts for the camera fields and
// creates the camera. The camera set is reloaded on success.
func (c *Controller) PlaceCamera(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	release, err := c.inflight.acquire(keyCameraPlace)
	if err != nil {
		c.fail(models.EntityCamera, "create", 0, "Placing camera", err)
		return err
	}
	defer release()

	c.info("Click on the map to place the camera")
	loc, err := c.pickLocation(ctx)
	if err != nil {
		c.fail(models.EntityCamera, "create", 0, "Camera placement cancelled", err)
		return err
	}

	name, url, err := c.promptCamera(ctx, "New camera", models.Camera{})
	if err != nil {
		c.cameraPromptFailed("create", 0, "Camera creation cancelled", err)
		return err
	}

	cam := models.Camera{Name: name, URL: url, Location: loc}
	if err := c.store.SaveCamera(ctx, cam); err != nil {
		c.fail(models.EntityCamera, "create", 0, "Failed to add camera", err)
		return err
	}
	c.record(models.EntityCamera, "create", 0, nil)
	c.success(fmt.Sprintf("Camera %q added", name))
	return c.LoadCameras(ctx)
}

func (c *Controller) cameraPromptFailed(op string, id int64, cancelled string, err error) {
	if errors.Is(err, ErrValidation) {
		c.record(models.EntityCamera, op, id, err)
		c.warn("Camera name and stream URL are required")
		return
	}
	c.fail(models.EntityCamera, op, id, cancelled, err)
}

// EditCamera prompts for new camera fields and keeps the location.
func (c *Controller) EditCamera(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	cam, ok := c.Camera(id)
	if !ok {
		c.record(models.EntityCamera, "edit", id, ErrNotFound)
		c.warn(fmt.Sprintf("Camera %d not found", id))
		return ErrNotFound
	}
	release, err := c.inflight.acquire(cameraKey(id))
	if err != nil {
		c.fail(models.EntityCamera, "edit", id, fmt.Sprintf("Updating camera %q", cam.Name), err)
		return err
	}
	defer release()

	name, url, err := c.promptCamera(ctx, "Edit camera", cam)
	if err != nil {
		c.cameraPromptFailed("edit", id, "Camera edit cancelled", err)
		return err
	}

	updated := models.Camera{ID: id, Name: name, URL: url, Location: cam.Location}
	if err := c.store.SaveCamera(ctx, updated); err != nil {
		c.fail(models.EntityCamera, "edit", id, fmt.Sprintf("Failed to update camera %q", cam.Name), err)
		return err
	}
	c.record(models.EntityCamera, "edit", id, nil)
	c.success(fmt.Sprintf("Camera %q updated", name))
	return c.LoadCameras(ctx)
}

// MoveCamera relocates a camera to the next picked location. The
// camera set is reloaded from the store on success.
func (c *Controller) MoveCamera(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	cam, ok := c.Camera(id)
	if !ok {
		c.record(models.EntityCamera, "move", id, ErrNotFound)
		c.warn(fmt.Sprintf("Camera %d not found", id))
		return ErrNotFound
	}
	release, err := c.inflight.acquire(cameraKey(id))
	if err != nil {
		c.fail(models.EntityCamera, "move", id, fmt.Sprintf("Moving camera %q", cam.Name), err)
		return err
	}
	defer release()

	c.info(fmt.Sprintf("Click on the map to move camera %q", cam.Name))
	loc, err := c.pickLocation(ctx)
	if err != nil {
		c.fail(models.EntityCamera, "move", id, "Camera move cancelled", err)
		return err
	}

	moved := models.Camera{ID: id, Name: cam.Name, URL: cam.URL, Location: loc}
	if err := c.store.SaveCamera(ctx, moved); err != nil {
		c.fail(models.EntityCamera, "move", id, fmt.Sprintf("Failed to move camera %q", cam.Name), err)
		return err
	}
	c.record(models.EntityCamera, "move", id, nil)
	c.success(fmt.Sprintf("Camera %q moved", cam.Name))
	return c.LoadCameras(ctx)
}

// DeleteCamera asks for confirmation, then deletes the camera.
func (c *Controller) DeleteCamera(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	cam, ok := c.Camera(id)
	if !ok {
		c.record(models.EntityCamera, "delete", id, ErrNotFound)
		c.warn(fmt.Sprintf("Camera %d not found", id))
		return ErrNotFound
	}
	yes, err := c.prompt.Confirm(ctx, fmt.Sprintf("Delete camera %q?", cam.Name))
	if err == nil && !yes {
		err = ErrCancelled
	}
	if err != nil {
		c.fail(models.EntityCamera, "delete", id, "Deletion cancelled", err)
		return err
	}

	release, err := c.inflight.acquire(cameraKey(id))
	if err != nil {
		c.fail(models.EntityCamera, "delete", id, fmt.Sprintf("Deleting camera %q", cam.Name), err)
		return err
	}
	defer release()

	if err := c.store.DeleteCamera(ctx, id); err != nil {
		c.fail(models.EntityCamera, "delete", id, fmt.Sprintf("Failed to delete camera %q", cam.Name), err)
		return err
	}

	c.mu.Lock()
	delete(c.cameras, id)
	c.cameraLayer.Remove(id)
	c.cameraList.Remove(id)
	metrics.Entities.WithLabelValues(models.EntityCamera).Set(float64(len(c.cameras)))
	c.mu.Unlock()

	c.record(models.EntityCamera, "delete", id, nil)
	c.success(fmt.Sprintf("Camera %q deleted", cam.Name))
	return nil
}
