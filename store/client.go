package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"smartvision/config"
	"smartvision/geometry"
	"smartvision/metrics"
	"smartvision/models"
)

const maxResponseBytes = 8 << 20

// Client talks to the remote zone and camera store.
type Client struct {
	cfg        *config.Config
	baseURL    *url.URL
	jar        http.CookieJar
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a store client for cfg.StoreURL
func NewClient(cfg *config.Config) (*Client, error) {
	base, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url %q: %w", cfg.StoreURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid store url %q: scheme and host are required", cfg.StoreURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if cfg.CSRFToken != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: cfg.CSRFCookie, Value: cfg.CSRFToken, Path: "/"}})
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.StoreRPS > 0 {
		burst := cfg.StoreBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.StoreRPS), burst)
	}

	return &Client{
		cfg:     cfg,
		baseURL: base,
		jar:     jar,
		httpClient: &http.Client{
			Timeout: cfg.StoreTimeout,
			Jar:     jar,
		},
		limiter: limiter,
	}, nil
}

// csrfToken returns the anti-forgery token last set by the store.
func (c *Client) csrfToken() string {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == c.cfg.CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

func entityPath(pattern string, id int64) string {
	return strings.ReplaceAll(pattern, "{id}", strconv.FormatInt(id, 10))
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, body, out)
	metrics.StoreRequestDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreRequestsTotal.WithLabelValues(op, result).Inc()
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limiter: %v", ErrStore, op, err)
	}

	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(reqBody)
	}

	endpoint := c.cfg.StoreURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(c.cfg.CSRFHeader, token)
		} else {
			log.WithField("op", op).Warn("No anti-forgery token available for mutating request")
		}
	}

	logger := log.WithFields(log.Fields{"op": op, "request_id": requestID})
	logger.Debugf("%s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("Store request failed: %v", err)
		return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", ErrStore, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Op: op, Code: resp.StatusCode, Message: errorMessage(data)}
		logger.Warnf("Store answered %d: %s", resp.StatusCode, serr.Message)
		return serr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", ErrStore, op, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil {
		if er.Error != "" {
			return er.Error
		}
		if er.Message != "" {
			return er.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ListZones fetches every zone the store knows about.
func (c *Client) ListZones(ctx context.Context) ([]models.Zone, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_zones", http.MethodGet, c.cfg.ZonesListPath, nil, &raw); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: list_zones: failed to parse GeoJSON: %v", ErrStore, err)
	}

	zones := make([]models.Zone, 0, len(fc.Features))
	for _, f := range fc.Features {
		z, err := zoneFromFeature(f)
		if err != nil {
			log.Warnf("Skipping zone feature: %v", err)
			continue
		}
		zones = append(zones, z)
	}
	log.Debugf("Loaded %d zones from the store", len(zones))
	return zones, nil
}

// SaveZone creates the zone when z.ID is zero and updates it otherwise.
// It returns the id of the stored zone.
func (c *Client) SaveZone(ctx context.Context, z models.Zone) (int64, error) {
	req := &SaveZoneRequest{
		ID:       z.ID,
		Name:     z.Name,
		Area:     z.Area,
		Geometry: geometry.PolygonToGeoJSON(z.Geometry),
	}
	resp := &SaveResponse{}
	if err := c.do(ctx, "save_zone", http.MethodPost, c.cfg.ZoneSavePath, req, resp); err != nil {
		return 0, err
	}
	if resp.Status == PayloadError {
		return 0, &RejectedError{Op: "save_zone", Message: resp.Message}
	}
	if resp.ID != 0 {
		return resp.ID, nil
	}
	if z.ID != 0 {
		return z.ID, nil
	}
	return 0, fmt.Errorf("%w: save_zone: response carried no id", ErrStore)
}

func (c *Client) DeleteZone(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_zone", http.MethodDelete, entityPath(c.cfg.ZoneDeletePath, id), nil, nil)
}

// ListCameras fetches every camera the store knows about.
func (c *Client) ListCameras(ctx context.Context) ([]models.Camera, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_cameras", http.MethodGet, c.cfg.CamerasListPath, nil, &raw); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: list_cameras: failed to parse GeoJSON: %v", ErrStore, err)
	}

	cameras := make([]models.Camera, 0, len(fc.Features))
	for _, f := range fc.Features {
		cam, err := cameraFromFeature(f)
		if err != nil {
			log.Warnf("Skipping camera feature: %v", err)
			continue
		}
		cameras = append(cameras, cam)
	}
	log.Debugf("Loaded %d cameras from the store", len(cameras))
	return cameras, nil
}

// SaveCamera creates the camera when cam.ID is zero and updates it otherwise.
func (c *Client) SaveCamera(ctx context.Context, cam models.Camera) error {
	req := &SaveCameraRequest{
		ID:          cam.ID,
		Name:        cam.Name,
		URL:         cam.URL,
		Coordinates: geometry.Coordinates(cam.Location),
	}
	resp := &SaveResponse{}
	if err := c.do(ctx, "save_camera", http.MethodPost, c.cfg.CameraSavePath, req, resp); err != nil {
		return err
	}
	switch resp.Status {
	case PayloadSuccess:
		return nil
	case PayloadError:
		return &RejectedError{Op: "save_camera", Message: resp.Message}
	default:
		return fmt.Errorf("%w: save_camera: unexpected status %q", ErrStore, resp.Status)
	}
}

func (c *Client) DeleteCamera(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_camera", http.MethodDelete, entityPath(c.cfg.CameraDeletePath, id), nil, nil)
}

// Boundary fetches the reference boundary published by the store.
func (c *Client) Boundary(ctx context.Context) (*geometry.Boundary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get_boundary", http.MethodGet, c.cfg.BoundaryPath, nil, &raw); err != nil {
		return nil, err
	}
	return geometry.ParseBoundary("store", raw)
}

func zoneFromFeature(f *geojson.Feature) (models.Zone, error) {
	id, err := featureID(f)
	if err != nil {
		return models.Zone{}, err
	}
	poly, err := geometry.PolygonFromGeoJSON(f.Geometry)
	if err != nil {
		return models.Zone{}, fmt.Errorf("zone %d: %w", id, err)
	}
	area, err := decimalProperty(f, "area")
	if err != nil {
		return models.Zone{}, fmt.Errorf("zone %d: %w", id, err)
	}
	return models.Zone{
		ID:       id,
		Name:     stringProperty(f, "name"),
		Area:     area,
		Geometry: poly,
	}, nil
}

func cameraFromFeature(f *geojson.Feature) (models.Camera, error) {
	id, err := featureID(f)
	if err != nil {
		return models.Camera{}, err
	}
	loc, err := geometry.PointFromGeoJSON(f.Geometry)
	if err != nil {
		return models.Camera{}, fmt.Errorf("camera %d: %w", id, err)
	}
	return models.Camera{
		ID:             id,
		Name:           stringProperty(f, "name"),
		URL:            stringProperty(f, "url"),
		StreamURL:      stringProperty(f, "rtsp_url"),
		Location:       loc,
		DepartmentName: stringProperty(f, "department_name"),
	}, nil
}

// featureID reads the id from the feature, then from the id or pk property.
func featureID(f *geojson.Feature) (int64, error) {
	candidates := []any{f.ID, f.Properties["id"], f.Properties["pk"]}
	for _, v := range candidates {
		switch id := v.(type) {
		case float64:
			if id > 0 {
				return int64(id), nil
			}
		case string:
			if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("feature without a usable id: %v", f.ID)
}

func stringProperty(f *geojson.Feature, key string) string {
	if s, ok := f.Properties[key].(string); ok {
		return s
	}
	return ""
}

func decimalProperty(f *geojson.Feature, key string) (decimal.Decimal, error) {
	switch v := f.Properties[key].(type) {
	case float64:
		return decimal.NewFromFloat(v).Round(2), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		return d.Round(2), nil
	case nil:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected %s type: %T", key, v)
	}
}
