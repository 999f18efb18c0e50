package controller

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"smartvision/fakestore"
	"smartvision/models"
	"smartvision/store"
)

func pickAt(p orb.Point) func(ctx context.Context) (orb.Point, error) {
	return func(ctx context.Context) (orb.Point, error) {
		return p, nil
	}
}

func seedCameras(t *testing.T, cameras ...models.Camera) {
	t.Helper()
	for _, cam := range cameras {
		fake.SeedCamera(cam)
	}
	if err := ctrl.LoadCameras(context.Background()); err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
}

func TestPlaceCamera(t *testing.T) {
	it(func() {
		fake.SeedZone(models.Zone{ID: 1, Name: "Labo", Geometry: inside})
		seedZones(t)
		seedCameras(t)

		loc := orb.Point{9.8817, 37.2362}
		surface.pick = pickAt(loc)
		prompter.answerFields("Cam 1", "rtsp://cam1")

		if err := ctrl.PlaceCamera(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if surface.popupsSuspended() {
			t.Errorf("Expected popups to be restored")
		}
		cameras := ctrl.Cameras()
		if len(cameras) != 1 {
			t.Fatalf("Expected 1 camera, got %d", len(cameras))
		}
		if cameras[0].Name != "Cam 1" || cameras[0].Location != loc {
			t.Errorf("Unexpected camera %+v", cameras[0])
		}
		if cameras[0].DepartmentName != "Labo" {
			t.Errorf("Expected department Labo, got %q", cameras[0].DepartmentName)
		}
		if cameraList.Len() != 1 || cameraLayer.Len() != 1 {
			t.Errorf("Expected the marker and the row to be rendered")
		}
		if n := fake.Calls(fakestore.OpListCameras); n != 2 {
			t.Errorf("Expected a reload after the create, got %d list calls", n)
		}
	})
}

func TestPlaceCameraValidation(t *testing.T) {
	testCases := []struct {
		name      string
		values    []string
		expectErr error
	}{
		{name: "Missing url", values: []string{"Cam 1", ""}, expectErr: ErrValidation},
		{name: "Missing name", values: []string{" ", "rtsp://cam1"}, expectErr: ErrValidation},
		{name: "Dismissed", values: nil, expectErr: ErrCancelled},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			it(func() {
				surface.pick = pickAt(orb.Point{9.8817, 37.2362})
				if tc.values != nil {
					prompter.answerFields(tc.values...)
				}
				err := ctrl.PlaceCamera(context.Background())
				if !errors.Is(err, tc.expectErr) {
					t.Errorf("Expected %v, got %v", tc.expectErr, err)
				}
				if n := fake.TotalCalls(); n != 0 {
					t.Errorf("Expected no store calls, got %d", n)
				}
				if notifier.last().Level != LevelWarning {
					t.Errorf("Expected a warning, got %+v", notifier.last())
				}
			})
		})
	}
}

func TestPlaceCameraRejected(t *testing.T) {
	it(func() {
		seedCameras(t)
		surface.pick = pickAt(orb.Point{9.8817, 37.2362})
		prompter.answerFields("Cam 1", "rtsp://cam1")
		fake.RejectNext(fakestore.OpSaveCamera, "Camera already exists")

		err := ctrl.PlaceCamera(context.Background())
		var rerr *store.RejectedError
		if !errors.As(err, &rerr) {
			t.Fatalf("Expected a rejected error, got %v", err)
		}
		if got := notifier.last(); got.Message != "Camera already exists" {
			t.Errorf("Expected the store message verbatim, got %q", got.Message)
		}
		if len(ctrl.Cameras()) != 0 || cameraList.Len() != 0 {
			t.Errorf("Expected no camera to be rendered")
		}
	})
}

func TestMoveCamera(t *testing.T) {
	it(func() {
		seedCameras(t, models.Camera{ID: 3, Name: "Cam", URL: "rtsp://cam", Location: orb.Point{9.8817, 37.2362}})

		dest := orb.Point{9.8822, 37.2364}
		surface.pick = func(ctx context.Context) (orb.Point, error) {
			if !surface.popupsSuspended() {
				t.Errorf("Expected popups to be suspended during the pick")
			}
			return dest, nil
		}

		if err := ctrl.MoveCamera(context.Background(), 3); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		cam, ok := ctrl.Camera(3)
		if !ok || cam.Location != dest {
			t.Errorf("Expected camera 3 at %v, got %+v", dest, cam)
		}
		if cam.Name != "Cam" || cam.URL != "rtsp://cam" {
			t.Errorf("Expected name and url to be kept, got %+v", cam)
		}
		if surface.popupsSuspended() {
			t.Errorf("Expected popups to be restored")
		}
		if n := fake.Calls(fakestore.OpListCameras); n != 2 {
			t.Errorf("Expected a full reload, got %d list calls", n)
		}
	})
}

func TestMoveCameraAborted(t *testing.T) {
	testCases := []struct {
		name    string
		timeout time.Duration
		pick    func(ctx context.Context) (orb.Point, error)
		inject  func()
		expect  error
	}{
		{
			name:   "Cancelled",
			pick:   func(ctx context.Context) (orb.Point, error) { return orb.Point{}, ErrCancelled },
			expect: ErrCancelled,
		}, {
			name:    "Timed out",
			timeout: 30 * time.Millisecond,
			expect:  ErrCancelled,
		}, {
			name:   "Store failure",
			pick:   pickAt(orb.Point{9.8822, 37.2364}),
			inject: func() { fake.FailNext(fakestore.OpSaveCamera, http.StatusInternalServerError, "boom") },
			expect: store.ErrStore,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			it(func() {
				if tc.timeout > 0 {
					ctrl = newController(client, Options{MoveTimeout: tc.timeout})
				}
				original := orb.Point{9.8817, 37.2362}
				seedCameras(t, models.Camera{ID: 3, Name: "Cam", URL: "rtsp://cam", Location: original})
				surface.pick = tc.pick
				if tc.inject != nil {
					tc.inject()
				}

				err := ctrl.MoveCamera(context.Background(), 3)
				if !errors.Is(err, tc.expect) {
					t.Errorf("Expected %v, got %v", tc.expect, err)
				}
				if surface.popupsSuspended() {
					t.Errorf("Expected popups to be restored")
				}
				if cam, _ := ctrl.Camera(3); cam.Location != original {
					t.Errorf("Expected the camera to stay at %v, got %v", original, cam.Location)
				}
				if n := fake.Calls(fakestore.OpListCameras); n != 1 {
					t.Errorf("Expected no reload, got %d list calls", n)
				}
			})
		})
	}
}

func TestMoveCameraContextCancelled(t *testing.T) {
	it(func() {
		seedCameras(t, models.Camera{ID: 3, Name: "Cam", URL: "rtsp://cam", Location: orb.Point{9.8817, 37.2362}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := ctrl.MoveCamera(ctx, 3); !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
		if surface.popupsSuspended() {
			t.Errorf("Expected popups to be restored")
		}
	})
}

func TestEditCamera(t *testing.T) {
	it(func() {
		loc := orb.Point{9.8817, 37.2362}
		seedCameras(t, models.Camera{ID: 3, Name: "Cam", URL: "rtsp://cam", Location: loc})
		prompter.answerFields("Gate", "rtsp://gate")

		if err := ctrl.EditCamera(context.Background(), 3); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		cam, _ := ctrl.Camera(3)
		if cam.Name != "Gate" || cam.URL != "rtsp://gate" || cam.Location != loc {
			t.Errorf("Unexpected camera %+v", cam)
		}
		row, _ := cameraList.Get(3)
		if row.Name != "Gate" {
			t.Errorf("Expected the sidebar row to be refreshed, got %+v", row)
		}
		if err := ctrl.EditCamera(context.Background(), 99); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteCamera(t *testing.T) {
	it(func() {
		seedCameras(t,
			models.Camera{ID: 3, Name: "Cam", URL: "rtsp://cam", Location: orb.Point{9.8817, 37.2362}},
			models.Camera{ID: 4, Name: "Gate", URL: "rtsp://gate", Location: orb.Point{9.8818, 37.2363}},
		)

		prompter.confirm(false)
		if err := ctrl.DeleteCamera(context.Background(), 3); !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
		if fake.Calls(fakestore.OpDeleteCamera) != 0 {
			t.Errorf("Expected no delete request")
		}

		fake.FailNext(fakestore.OpDeleteCamera, http.StatusInternalServerError, "boom")
		prompter.confirm(true)
		if err := ctrl.DeleteCamera(context.Background(), 3); !errors.Is(err, store.ErrStore) {
			t.Errorf("Expected a store error, got %v", err)
		}
		if _, ok := cameraLayer.Get(3); !ok {
			t.Errorf("Expected the marker to remain after a failed delete")
		}

		prompter.confirm(true)
		if err := ctrl.DeleteCamera(context.Background(), 3); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if _, ok := cameraLayer.Get(3); ok {
			t.Errorf("Expected the marker to be removed")
		}
		if _, ok := cameraList.Get(3); ok {
			t.Errorf("Expected the row to be removed")
		}
		if len(ctrl.Cameras()) != 1 {
			t.Errorf("Expected 1 camera left, got %d", len(ctrl.Cameras()))
		}
	})
}

func TestLoadCamerasDerivesDepartment(t *testing.T) {
	it(func() {
		stub := &stubStore{
			zones: []models.Zone{{ID: 1, Name: "Labo", Geometry: inside}},
			cameras: []models.Camera{
				{ID: 1, Name: "In", Location: orb.Point{9.8817, 37.2362}},
				{ID: 2, Name: "Out", Location: orb.Point{9.8790, 37.2360}},
				{ID: 3, Name: "Given", Location: orb.Point{9.8817, 37.2362}, DepartmentName: "Accueil"},
			},
		}
		ctrl = newController(stub, Options{})
		ctx := context.Background()
		if err := ctrl.LoadZones(ctx); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if err := ctrl.LoadCameras(ctx); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		expect := map[int64]string{1: "Labo", 2: "", 3: "Accueil"}
		for id, dept := range expect {
			cam, _ := ctrl.Camera(id)
			if cam.DepartmentName != dept {
				t.Errorf("Expected camera %d in %q, got %q", id, dept, cam.DepartmentName)
			}
		}
	})
}

func TestPlaceCameraBusy(t *testing.T) {
	it(func() {
		entered := make(chan struct{})
		release := make(chan struct{})
		surface.pick = func(ctx context.Context) (orb.Point, error) {
			close(entered)
			<-release
			return orb.Point{}, ErrCancelled
		}

		first := make(chan error, 1)
		go func() { first <- ctrl.PlaceCamera(context.Background()) }()
		<-entered

		if err := ctrl.PlaceCamera(context.Background()); !errors.Is(err, ErrBusy) {
			t.Errorf("Expected ErrBusy, got %v", err)
		}
		close(release)
		if err := <-first; !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	})
}

func TestPlaceCameraWaitsForRunningReload(t *testing.T) {
	it(func() {
		stub := &stubStore{
			listGate:    make(chan struct{}),
			listEntered: make(chan struct{}),
			onSave:      make(chan struct{}),
		}
		ctrl = newController(stub, Options{MoveTimeout: 2 * time.Second})
		surface.pick = pickAt(orb.Point{9.8817, 37.2362})
		prompter.answerFields("Cam 1", "rtsp://cam1")

		loaded := make(chan error, 1)
		go func() { loaded <- ctrl.LoadCameras(context.Background()) }()
		<-stub.listEntered

		placed := make(chan error, 1)
		go func() { placed <- ctrl.PlaceCamera(context.Background()) }()
		<-stub.onSave
		close(stub.listGate)

		if err := <-loaded; err != nil {
			t.Errorf("Expected the running reload to succeed, got %v", err)
		}
		if err := <-placed; err != nil {
			t.Fatalf("Expected the placement to succeed, got %v", err)
		}
		if n := len(ctrl.Cameras()); n != 1 {
			t.Errorf("Expected the saved camera to be rendered, got %d cameras", n)
		}
		if cameraList.Len() != 1 || cameraLayer.Len() != 1 {
			t.Errorf("Expected the marker and the row to be rendered")
		}
		if notifier.has(LevelWarning, "in progress") {
			t.Errorf("Expected no busy warning, got %+v", notifier.last())
		}
	})
}

func TestOverlappingZoneReloads(t *testing.T) {
	it(func() {
		fake.SeedZone(models.Zone{ID: 1, Name: "Labo", Geometry: inside})
		errs := make(chan error, 3)
		for i := 0; i < 3; i++ {
			go func() { errs <- ctrl.LoadZones(context.Background()) }()
		}
		for i := 0; i < 3; i++ {
			if err := <-errs; err != nil {
				t.Errorf("Expected every reload to succeed, got %v", err)
			}
		}
		if n := fake.Calls(fakestore.OpListZones); n != 3 {
			t.Errorf("Expected 3 list calls, got %d", n)
		}
		if zoneList.Len() != 1 {
			t.Errorf("Expected 1 zone rendered, got %d", zoneList.Len())
		}
	})
}
