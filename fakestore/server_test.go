package fakestore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jknair0/beforeeach"
	"github.com/paulmach/orb"

	"smartvision/config"
	"smartvision/models"
)

var (
	fake   *Server
	server *httptest.Server
	cfg    *config.Config
)

func setUp() {
	cfg = config.Load()
	fake = New(cfg, WithToken("tok"))
	server = httptest.NewServer(fake.Handler())
}

func tearDown() {
	server.Close()
	fake.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func request(t *testing.T, method, path, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(cfg.CSRFHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

const polygonBody = `{"name":"Zone A","area":"0.25","geometry":{"type":"Polygon","coordinates":[[[9.8815,37.236],[9.882,37.236],[9.882,37.2365],[9.8815,37.2365],[9.8815,37.236]]]}}`

func TestSavePolygon(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		token       string
		expectCode  int
		expectError string
	}{
		{name: "Created", body: polygonBody, token: "tok", expectCode: http.StatusOK},
		{name: "Missing token", body: polygonBody, expectCode: http.StatusForbidden, expectError: "CSRF verification failed"},
		{name: "Wrong token", body: polygonBody, token: "nope", expectCode: http.StatusForbidden, expectError: "CSRF verification failed"},
		{name: "Missing name", body: `{"geometry":{"type":"Polygon","coordinates":[]}}`, token: "tok", expectCode: http.StatusBadRequest, expectError: "Name and geometry are required"},
		{name: "Bad JSON", body: `{`, token: "tok", expectCode: http.StatusBadRequest, expectError: "Invalid JSON"},
		{name: "Unknown id", body: `{"id":9,"name":"Zone A","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, token: "tok", expectCode: http.StatusNotFound, expectError: "Polygon not found"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			it(func() {
				resp := request(t, http.MethodPost, cfg.ZoneSavePath, tc.body, tc.token)
				if resp.StatusCode != tc.expectCode {
					t.Errorf("Expected %d, got %d", tc.expectCode, resp.StatusCode)
				}
				out := decode(t, resp)
				if tc.expectError != "" {
					if out["error"] != tc.expectError {
						t.Errorf("Expected error %q, got %v", tc.expectError, out["error"])
					}
					return
				}
				if out["status"] != "success" || out["id"] != float64(1) {
					t.Errorf("Unexpected response %v", out)
				}
				zones := fake.Zones()
				if len(zones) != 1 || zones[0].Area.StringFixed(2) != "0.25" {
					t.Errorf("Unexpected stored zones %+v", zones)
				}
			})
		})
	}
}

func TestListSetsToken(t *testing.T) {
	it(func() {
		fake.SeedZone(models.Zone{ID: 5, Name: "Seeded", Geometry: orb.Polygon{{{9.8815, 37.236}, {9.882, 37.236}, {9.882, 37.2365}, {9.8815, 37.236}}}})
		resp := request(t, http.MethodGet, cfg.ZonesListPath, "", "")
		var token string
		for _, ck := range resp.Cookies() {
			if ck.Name == cfg.CSRFCookie {
				token = ck.Value
			}
		}
		if token != "tok" {
			t.Errorf("Expected the token cookie, got %q", token)
		}
		out := decode(t, resp)
		features, _ := out["features"].([]any)
		if len(features) != 1 {
			t.Fatalf("Expected 1 feature, got %v", out)
		}
		f := features[0].(map[string]any)
		if f["id"] != float64(5) {
			t.Errorf("Expected id 5, got %v", f["id"])
		}
		if next := fake.SeedZone(models.Zone{Name: "Next"}); next != 6 {
			t.Errorf("Expected the next id to follow the seeded one, got %d", next)
		}
	})
}

func TestFailureInjection(t *testing.T) {
	it(func() {
		fake.FailNext(OpListCameras, http.StatusServiceUnavailable, "maintenance")
		if resp := request(t, http.MethodGet, cfg.CamerasListPath, "", ""); resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.StatusCode)
		}
		if resp := request(t, http.MethodGet, cfg.CamerasListPath, "", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("Expected the failure to be consumed, got %d", resp.StatusCode)
		}

		fake.FailAlways(OpGetBoundary, http.StatusInternalServerError, "down")
		for i := 0; i < 2; i++ {
			if resp := request(t, http.MethodGet, cfg.BoundaryPath, "", ""); resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("Expected 500, got %d", resp.StatusCode)
			}
		}
		fake.Clear()
		if resp := request(t, http.MethodGet, cfg.BoundaryPath, "", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200 after clear, got %d", resp.StatusCode)
		}

		fake.RejectNext(OpSaveCamera, "Camera already exists")
		out := decode(t, request(t, http.MethodPost, cfg.CameraSavePath, `{"name":"c","url":"u","coordinates":[1,2]}`, "tok"))
		if out["status"] != "error" || out["message"] != "Camera already exists" {
			t.Errorf("Unexpected response %v", out)
		}

		if fake.Calls(OpListCameras) != 2 || fake.Calls(OpGetBoundary) != 3 {
			t.Errorf("Unexpected call counts %d %d", fake.Calls(OpListCameras), fake.Calls(OpGetBoundary))
		}
	})
}

func TestDeleteEndpoints(t *testing.T) {
	it(func() {
		fake.SeedCamera(models.Camera{ID: 2, Name: "Cam", URL: "rtsp://cam"})
		if resp := request(t, http.MethodDelete, "/delete_camera/2/", "", "tok"); resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
		if resp := request(t, http.MethodDelete, "/delete_camera/2/", "", "tok"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
		if resp := request(t, http.MethodDelete, "/delete-polygon/abc/", "", "tok"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	it(func() {
		out := decode(t, request(t, http.MethodGet, "/health", "", ""))
		if out["status"] != "healthy" {
			t.Errorf("Unexpected health %v", out)
		}
		request(t, http.MethodGet, cfg.ZonesListPath, "", "").Body.Close()

		resp := request(t, http.MethodGet, "/metrics", "", "")
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Failed to read metrics: %v", err)
		}
		if !strings.Contains(string(body), `fakestore_requests_total{code="200",op="list_zones"} 1`) {
			t.Errorf("Expected the list_zones counter, got %s", body)
		}
	})
}

func TestChangeFeed(t *testing.T) {
	it(func() {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + cfg.ChangesPath
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Failed to dial: %v", err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for fake.Subscribers() == 0 {
			if time.Now().After(deadline) {
				t.Fatalf("Client never registered")
			}
			time.Sleep(10 * time.Millisecond)
		}

		request(t, http.MethodPost, cfg.ZoneSavePath, polygonBody, "tok").Body.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ch models.Change
		if err := conn.ReadJSON(&ch); err != nil {
			t.Fatalf("Failed to read change: %v", err)
		}
		if ch.Entity != models.EntityZone || ch.Action != models.ActionSaved || ch.ID != 1 {
			t.Errorf("Unexpected change %+v", ch)
		}
	})
}
