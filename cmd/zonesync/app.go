package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartvision/config"
	"smartvision/controller"
	"smartvision/geometry"
	"smartvision/metrics"
	"smartvision/models"
	"smartvision/store"
	"smartvision/term"
	"smartvision/views"
)

var errUsage = errors.New("invalid usage")

type app struct {
	cfg     *config.Config
	out     io.Writer
	client  *store.Client
	surface *term.Surface
	ctrl    *controller.Controller

	zones   *views.List[models.Zone]
	cameras *views.List[models.Camera]
}

func newApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*app, error) {
	client, err := store.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	boundary, err := loadBoundary(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	log.Debugf("Reference boundary %s: %s ha", boundary.Name, boundary.Area.StringFixed(2))

	console := term.NewConsole(in, out)
	a := &app{
		cfg:     cfg,
		out:     out,
		client:  client,
		surface: term.NewSurface(console),
		zones:   views.NewList[models.Zone](),
		cameras: views.NewList[models.Camera](),
	}
	a.ctrl, err = controller.New(controller.Deps{
		Store:      client,
		Prompter:   console,
		Notifier:   term.NewNotifier(out),
		Surface:    a.surface,
		ZoneList:   a.zones,
		CameraList: a.cameras,
		Stats:      term.NewStatsView(out),
	}, controller.Options{
		Boundary:     boundary,
		RenameOnEdit: cfg.RenameOnEdit,
		MoveTimeout:  cfg.MoveTimeout,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func loadBoundary(ctx context.Context, cfg *config.Config, client *store.Client) (*geometry.Boundary, error) {
	switch {
	case cfg.BoundaryFile != "":
		return geometry.LoadBoundaryFile(cfg.BoundaryFile)
	case cfg.BoundaryFromStore:
		return client.Boundary(ctx)
	default:
		return geometry.DefaultBoundary(), nil
	}
}

func (a *app) close() {
	a.ctrl.Close()
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "zones":
		return a.zonesCommand(ctx, args[1:])
	case "cameras":
		return a.camerasCommand(ctx, args[1:])
	case "watch":
		return a.watch(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func subcommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: missing subcommand", errUsage)
	}
	return args[0], args[1:], nil
}

func (a *app) zonesCommand(ctx context.Context, args []string) error {
	name, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("zones "+name, flag.ContinueOnError)
	id := fs.Int64("id", 0, "Zone id.")
	file := fs.String("file", "", "GeoJSON file with the shape.")
	yes := fs.Bool("yes", false, "Do not ask for confirmation.")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if err := a.ctrl.LoadZones(ctx); err != nil {
		return err
	}

	switch name {
	case "list":
		term.PrintZones(a.out, a.zones.Items())
		return nil

	case "draw":
		shape, err := readShape(*file)
		if err != nil {
			return err
		}
		if err := a.ctrl.BeginDraw(); err != nil {
			return err
		}
		a.surface.SetDraft(shape)
		return a.ctrl.SavePending(ctx)

	case "import":
		polys, err := readShapes(*file)
		if err != nil {
			return err
		}
		return a.importZones(ctx, polys)

	case "edit":
		if *id == 0 {
			return fmt.Errorf("%w: -id is required", errUsage)
		}
		var shape orb.Polygon
		if *file != "" {
			if shape, err = readShape(*file); err != nil {
				return err
			}
		}
		if err := a.ctrl.BeginShapeEdit(*id); err != nil {
			return err
		}
		if shape != nil {
			a.surface.SetEdited(*id, shape)
		}
		return a.ctrl.SaveShapeEdit(ctx, *id)

	case "delete":
		if *id == 0 {
			return fmt.Errorf("%w: -id is required", errUsage)
		}
		if *yes {
			return a.ctrl.HandleDeleted(ctx, []int64{*id})
		}
		return a.ctrl.DeleteZone(ctx, *id)

	default:
		return fmt.Errorf("%w: unknown zones subcommand %q", errUsage, name)
	}
}

func readShapes(path string) ([]geometry.NamedPolygon, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: -file is required", errUsage)
	}
	return geometry.LoadPolygonsFile(path)
}

// readShape reads a file holding exactly one polygon.
func readShape(path string) (orb.Polygon, error) {
	polys, err := readShapes(path)
	if err != nil {
		return nil, err
	}
	if len(polys) != 1 {
		return nil, fmt.Errorf("%w: %s holds %d polygons, expected one", errUsage, path, len(polys))
	}
	return polys[0].Polygon, nil
}

// importZones creates every named polygon. Unnamed ones are skipped.
func (a *app) importZones(ctx context.Context, polys []geometry.NamedPolygon) error {
	var errs []error
	created := 0
	for i, p := range polys {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			log.Warnf("Skipping feature %d: no name property", i)
			continue
		}
		if _, err := a.ctrl.CreateZone(ctx, name, p.Polygon); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		created++
	}
	log.Infof("Imported %d of %d zones", created, len(polys))
	return errors.Join(errs...)
}

func (a *app) camerasCommand(ctx context.Context, args []string) error {
	name, rest, err := subcommand(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("cameras "+name, flag.ContinueOnError)
	id := fs.Int64("id", 0, "Camera id.")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if name != "list" && name != "add" && *id == 0 {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	// Zones are loaded for the department names.
	if err := a.ctrl.LoadZones(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadCameras(ctx); err != nil {
		return err
	}

	switch name {
	case "list":
		term.PrintCameras(a.out, a.cameras.Items())
		return nil
	case "add":
		return a.ctrl.PlaceCamera(ctx)
	case "edit":
		return a.ctrl.EditCamera(ctx, *id)
	case "move":
		return a.ctrl.MoveCamera(ctx, *id)
	case "delete":
		return a.ctrl.DeleteCamera(ctx, *id)
	default:
		return fmt.Errorf("%w: unknown cameras subcommand %q", errUsage, name)
	}
}

// followViews reprints a table every time its view changes.
func (a *app) followViews() {
	a.zones.OnChange = func(n int) {
		fmt.Fprintf(a.out, "\nZones (%d)\n", n)
		term.PrintZones(a.out, a.zones.Items())
	}
	a.cameras.OnChange = func(n int) {
		fmt.Fprintf(a.out, "\nCameras (%d)\n", n)
		term.PrintCameras(a.out, a.cameras.Items())
	}
}

// watch keeps both entity sets in sync with the store until ctx is done.
func (a *app) watch(ctx context.Context) error {
	a.followViews()
	if err := a.ctrl.LoadZones(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadCameras(ctx); err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics.Register(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Infof("Serving metrics on %s", a.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	err := a.ctrl.Watch(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
