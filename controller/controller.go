// Package controller keeps the rendered zone and camera entity sets, the
// map layer, the sidebar and the remote store consistent.
//
// Every view mutation happens after the store confirmed the change. A
// failed request leaves the entity sets, the views and the aggregates
// exactly as they were.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"smartvision/common"
	"smartvision/geometry"
	"smartvision/metrics"
	"smartvision/models"
	"smartvision/store"
)

// Store is the remote CRUD store.
type Store interface {
	ListZones(ctx context.Context) ([]models.Zone, error)
	SaveZone(ctx context.Context, z models.Zone) (int64, error)
	DeleteZone(ctx context.Context, id int64) error
	ListCameras(ctx context.Context) ([]models.Camera, error)
	SaveCamera(ctx context.Context, cam models.Camera) error
	DeleteCamera(ctx context.Context, id int64) error
}

// Watcher is implemented by stores publishing a change feed.
type Watcher interface {
	Watch(ctx context.Context, fn func(models.Change)) error
}

// Field is one input of a multi-field prompt.
type Field struct {
	Name  string
	Label string
	Value string
}

// Prompter collects user input. Dismissing a prompt returns ErrCancelled.
type Prompter interface {
	PromptText(ctx context.Context, title, initial string) (string, error)
	PromptFields(ctx context.Context, title string, fields []Field) ([]string, error)
	Confirm(ctx context.Context, message string) (bool, error)
}

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Notification struct {
	Level   Level
	Message string
}

// Notifier shows ephemeral status messages.
type Notifier interface {
	Notify(n Notification)
}

// Surface is the drawing surface. It is the only seam touching the
// drawing tools.
type Surface interface {
	// StartPolygon arms a polygon drawing gesture.
	StartPolygon()
	// Drawing reports whether a gesture is in progress.
	Drawing() bool
	// CompleteShape ends the gesture in progress and returns its shape,
	// if the gesture produced one.
	CompleteShape() (orb.Polygon, bool)
	EnableEditing(id int64)
	// FinishEditing turns editing off and returns the edited shape.
	FinishEditing(id int64) (orb.Polygon, bool)
	SetSaveControl(visible bool)
	SuspendPopups()
	RestorePopups()
	// PickLocation waits for one click on the surface. It must return
	// when ctx is done and never stay armed afterwards.
	PickLocation(ctx context.Context) (orb.Point, error)
}

// View is a rendering of an entity set: the map layer or the sidebar.
type View[T any] interface {
	Reset(items []T)
	Put(item T)
	Remove(id int64)
}

type StatsView interface {
	RenderStats(s models.Stats)
}

// Deps are the collaborators of a Controller. Nil views are replaced
// with ones discarding everything.
type Deps struct {
	Store    Store
	Prompter Prompter
	Notifier Notifier
	Surface  Surface

	ZoneLayer   View[models.Zone]
	ZoneList    View[models.Zone]
	CameraLayer View[models.Camera]
	CameraList  View[models.Camera]
	Stats       StatsView
}

type Options struct {
	Boundary     *geometry.Boundary
	RenameOnEdit bool
	MoveTimeout  time.Duration
}

type Controller struct {
	store   Store
	prompt  Prompter
	notify  Notifier
	surface Surface

	zoneLayer   View[models.Zone]
	zoneList    View[models.Zone]
	cameraLayer View[models.Camera]
	cameraList  View[models.Camera]
	statsView   StatsView

	boundary     *geometry.Boundary
	renameOnEdit bool
	moveTimeout  time.Duration

	inflight    *inflight
	zonesLoad   loadGate
	camerasLoad loadGate
	done        chan struct{}

	mu         sync.Mutex
	zones      map[int64]models.Zone
	cameras    map[int64]models.Camera
	totalArea  decimal.Decimal
	pending    orb.Polygon
	hasPending bool
	pendingSeq uint64
	editing    map[int64]bool
	closed     bool
}

// New creates a controller. It does not load anything: call LoadZones and
// LoadCameras to establish the baseline.
func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Store == nil || deps.Prompter == nil || deps.Notifier == nil || deps.Surface == nil {
		return nil, errors.New("store, prompter, notifier and surface are required")
	}
	if opts.Boundary == nil {
		opts.Boundary = geometry.DefaultBoundary()
	}
	c := &Controller{
		store:        deps.Store,
		prompt:       deps.Prompter,
		notify:       deps.Notifier,
		surface:      deps.Surface,
		zoneLayer:    deps.ZoneLayer,
		zoneList:     deps.ZoneList,
		cameraLayer:  deps.CameraLayer,
		cameraList:   deps.CameraList,
		statsView:    deps.Stats,
		boundary:     opts.Boundary,
		renameOnEdit: opts.RenameOnEdit,
		moveTimeout:  opts.MoveTimeout,
		inflight:     newInflight(),
		zonesLoad:    newLoadGate(),
		camerasLoad:  newLoadGate(),
		done:         make(chan struct{}),
		zones:        make(map[int64]models.Zone),
		cameras:      make(map[int64]models.Camera),
		totalArea:    decimal.Zero,
		editing:      make(map[int64]bool),
	}
	if c.zoneLayer == nil {
		c.zoneLayer = discard[models.Zone]{}
	}
	if c.zoneList == nil {
		c.zoneList = discard[models.Zone]{}
	}
	if c.cameraLayer == nil {
		c.cameraLayer = discard[models.Camera]{}
	}
	if c.cameraList == nil {
		c.cameraList = discard[models.Camera]{}
	}
	if c.statsView == nil {
		c.statsView = discard[models.Stats]{}
	}
	return c, nil
}

type discard[T any] struct{}

func (discard[T]) Reset([]T)                {}
func (discard[T]) Put(T)                    {}
func (discard[T]) Remove(int64)             {}
func (discard[T]) RenderStats(models.Stats) {}

// Close tears the controller down. The pending slot is cleared, transient
// affordances are hidden and a location pick in progress is cancelled.
// Later operations fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pending = nil
	c.hasPending = false
	c.editing = make(map[int64]bool)
	c.mu.Unlock()

	close(c.done)
	c.surface.SetSaveControl(false)
	c.surface.RestorePopups()
	log.Debug("Controller closed")
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Zones returns the confirmed zones ordered by id.
func (c *Controller) Zones() []models.Zone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedZonesLocked()
}

func (c *Controller) Cameras() []models.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedCamerasLocked()
}

// Zone returns the confirmed zone with the given id.
func (c *Controller) Zone(id int64) (models.Zone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	z, ok := c.zones[id]
	return z, ok
}

func (c *Controller) Camera(id int64) (models.Camera, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ok := c.cameras[id]
	return cam, ok
}

// Pending returns the geometry held in the pending slot.
func (c *Controller) Pending() (orb.Polygon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.hasPending
}

func (c *Controller) Boundary() *geometry.Boundary {
	return c.boundary
}

func (c *Controller) sortedZonesLocked() []models.Zone {
	zones := make([]models.Zone, 0, len(c.zones))
	for _, z := range c.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

func (c *Controller) sortedCamerasLocked() []models.Camera {
	cameras := make([]models.Camera, 0, len(c.cameras))
	for _, cam := range c.cameras {
		cameras = append(cameras, cam)
	}
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].ID < cameras[j].ID })
	return cameras
}

func (c *Controller) info(msg string) {
	c.notify.Notify(Notification{Level: LevelInfo, Message: msg})
}

func (c *Controller) success(msg string) {
	c.notify.Notify(Notification{Level: LevelSuccess, Message: msg})
}

func (c *Controller) warn(msg string) {
	c.notify.Notify(Notification{Level: LevelWarning, Message: msg})
}

// fail records a failed operation and tells the user. A rejection
// message from the store is shown verbatim.
func (c *Controller) fail(entity, op string, id int64, prefix string, err error) {
	c.record(entity, op, id, err)

	var rejected *store.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.notify.Notify(Notification{Level: LevelError, Message: rejected.Error()})
	case errors.Is(err, ErrBusy):
		c.warn(fmt.Sprintf("%s: a request is already in progress", prefix))
	case errors.Is(err, ErrCancelled):
		c.warn(prefix)
	case errors.Is(err, ErrClosed):
	default:
		c.notify.Notify(Notification{Level: LevelError, Message: fmt.Sprintf("%s: %v", prefix, err)})
	}
}

func (c *Controller) record(entity, op string, id int64, err error) {
	metrics.OperationsTotal.WithLabelValues(entity, op, resultOf(err)).Inc()
	common.LogResult(entity, op, id, err, ErrCancelled, ErrBusy)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrOutsideBoundary), errors.Is(err, ErrValidation),
		errors.Is(err, ErrNoPending), errors.Is(err, ErrNotFound):
		return "rejected"
	default:
		return "error"
	}
}

// Watch reloads the affected entity set for every change published by
// the store until ctx is done.
func (c *Controller) Watch(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	w, ok := c.store.(Watcher)
	if !ok {
		return errors.New("store does not publish changes")
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

	return w.Watch(ctx, func(ch models.Change) {
		metrics.ChangesReceivedTotal.WithLabelValues(ch.Entity).Inc()
		var err error
		switch ch.Entity {
		case models.EntityZone:
			err = c.LoadZones(ctx)
		case models.EntityCamera:
			err = c.LoadCameras(ctx)
		default:
			log.Warnf("Ignoring change for unknown entity %q", ch.Entity)
		}
		if err != nil {
			log.Warnf("Reload after %s %s %d failed: %v", ch.Entity, ch.Action, ch.ID, err)
		}
	})
}
