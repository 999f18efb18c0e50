// Package fakestore is an in-memory implementation of the remote zone and
// camera store, with failure injection for tests and local development.
package fakestore

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"smartvision/config"
	"smartvision/geometry"
	"smartvision/models"
	"smartvision/version"
)

// Operation names, shared with the store client metrics labels.
const (
	OpListZones    = "list_zones"
	OpSaveZone     = "save_zone"
	OpDeleteZone   = "delete_zone"
	OpListCameras  = "list_cameras"
	OpSaveCamera   = "save_camera"
	OpDeleteCamera = "delete_camera"
	OpGetBoundary  = "get_boundary"
)

type failure struct {
	status  int
	message string
	reject  bool
	always  bool
}

// Server is the fake store. The zero value is not usable, use New.
type Server struct {
	cfg      *config.Config
	boundary *geometry.Boundary
	token    string
	latency  time.Duration

	mu           sync.Mutex
	zones        map[int64]models.Zone
	cameras      map[int64]models.Camera
	nextZoneID   int64
	nextCameraID int64
	failures     map[string]failure
	calls        map[string]int

	hub      *Hub
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	router   *gin.Engine
	upgrader websocket.Upgrader
}

type Option func(*Server)

// WithToken fixes the anti-forgery token instead of generating one.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func WithBoundary(b *geometry.Boundary) Option {
	return func(s *Server) { s.boundary = b }
}

// New builds a fake store serving the paths configured in cfg. The hub
// is started; call Close to stop it.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		boundary:     geometry.DefaultBoundary(),
		zones:        make(map[int64]models.Zone),
		cameras:      make(map[int64]models.Camera),
		nextZoneID:   1,
		nextCameraID: 1,
		failures:     make(map[string]failure),
		calls:        make(map[string]int),
		hub:          NewHub(),
		registry:     prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fakestore",
			Name:      "requests_total",
			Help:      "Requests served by the fake store, labeled by operation and status code.",
		}, []string{"op", "code"}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.token == "" {
		s.token = newToken()
	}
	s.registry.MustRegister(s.requests)
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "fakestore",
		Name:      "change_feed_clients",
		Help:      "Number of connected change feed clients.",
	}, func() float64 { return float64(s.hub.ConnectedClients()) }))

	go s.hub.Run()
	s.router = s.routes()
	return s
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fakestore-token"
	}
	return hex.EncodeToString(b)
}

func ginPath(p string) string {
	return strings.ReplaceAll(p, "{id}", ":id")
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.delay())

	router.GET("/health", s.health)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get("fakestore"))
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	router.GET(s.cfg.ZonesListPath, s.csrfCookie(), s.listZones)
	router.POST(s.cfg.ZoneSavePath, s.csrfCheck(OpSaveZone), s.saveZone)
	router.DELETE(ginPath(s.cfg.ZoneDeletePath), s.csrfCheck(OpDeleteZone), s.deleteZone)
	router.GET(s.cfg.CamerasListPath, s.csrfCookie(), s.listCameras)
	router.POST(s.cfg.CameraSavePath, s.csrfCheck(OpSaveCamera), s.saveCamera)
	router.DELETE(ginPath(s.cfg.CameraDeletePath), s.csrfCheck(OpDeleteCamera), s.deleteCamera)
	router.GET(s.cfg.BoundaryPath, s.csrfCookie(), s.getBoundary)
	router.GET(s.cfg.ChangesPath, s.changes)
	return router
}

// Handler returns the HTTP handler of the store.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Token() string {
	return s.token
}

// Close disconnects change feed clients and stops the hub.
func (s *Server) Close() {
	s.hub.Stop()
}

func (s *Server) delay() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-c.Request.Context().Done():
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
		}
		c.Next()
	}
}

func (s *Server) csrfCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cfg.CSRFCookie, s.token, 0, "/", "", false, false)
		c.Next()
	}
}

func (s *Server) csrfCheck(op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(s.cfg.CSRFHeader) != s.token {
			log.Warnf("Rejecting %s: anti-forgery token missing or wrong", op)
			s.count(op, http.StatusForbidden)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF verification failed"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fakestore",
	})
}

// begin records the call and reports an injected failure, if any. It
// writes the failure response itself and returns false in that case.
func (s *Server) begin(c *gin.Context, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	f, ok := s.failures[op]
	if ok && !f.always {
		delete(s.failures, op)
	}
	s.mu.Unlock()

	if !ok {
		return true
	}
	if f.reject {
		s.count(op, http.StatusOK)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": f.message})
		return false
	}
	s.count(op, f.status)
	c.JSON(f.status, gin.H{"error": f.message})
	return false
}

func (s *Server) count(op string, code int) {
	s.requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

func (s *Server) reply(c *gin.Context, op string, code int, body any) {
	s.count(op, code)
	c.JSON(code, body)
}

type saveZoneArgs struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Area     decimal.Decimal   `json:"area"`
	Geometry *geojson.Geometry `json:"geometry"`
}

type saveCameraArgs struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Coordinates []float64 `json:"coordinates"`
}

func (s *Server) listZones(c *gin.Context) {
	if !s.begin(c, OpListZones) {
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, z := range s.Zones() {
		f := geojson.NewFeature(geometry.PolygonToGeoJSON(z.Geometry))
		f.ID = z.ID
		f.SetProperty("name", z.Name)
		f.SetProperty("area", z.Area.InexactFloat64())
		fc.AddFeature(f)
	}
	s.reply(c, OpListZones, http.StatusOK, fc)
}

func (s *Server) saveZone(c *gin.Context) {
	if !s.begin(c, OpSaveZone) {
		return
	}
	args := &saveZoneArgs{}
	if err := c.ShouldBindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /save-polygon call: %v", err)
		s.reply(c, OpSaveZone, http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if args.Name == "" || args.Geometry == nil {
		s.reply(c, OpSaveZone, http.StatusBadRequest, gin.H{"error": "Name and geometry are required"})
		return
	}
	poly, err := geometry.PolygonFromGeoJSON(args.Geometry)
	if err != nil {
		s.reply(c, OpSaveZone, http.StatusBadRequest, gin.H{"error": "Invalid geometry"})
		return
	}

	// The area is stored as sent by the client.
	z := models.Zone{ID: args.ID, Name: args.Name, Area: args.Area.Round(2), Geometry: poly}

	s.mu.Lock()
	message := "Polygon saved successfully"
	if z.ID != 0 {
		if _, ok := s.zones[z.ID]; !ok {
			s.mu.Unlock()
			s.reply(c, OpSaveZone, http.StatusNotFound, gin.H{"error": "Polygon not found"})
			return
		}
		message = "Polygon updated successfully"
	} else {
		z.ID = s.nextZoneID
		s.nextZoneID++
	}
	s.zones[z.ID] = z
	s.mu.Unlock()

	s.hub.Publish(models.Change{Entity: models.EntityZone, Action: models.ActionSaved, ID: z.ID})
	s.reply(c, OpSaveZone, http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
		"id":      z.ID,
	})
}

func (s *Server) deleteZone(c *gin.Context) {
	if !s.begin(c, OpDeleteZone) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.reply(c, OpDeleteZone, http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	s.mu.Lock()
	_, ok := s.zones[id]
	delete(s.zones, id)
	s.mu.Unlock()

	if !ok {
		s.reply(c, OpDeleteZone, http.StatusNotFound, gin.H{"error": "Polygon not found"})
		return
	}
	s.hub.Publish(models.Change{Entity: models.EntityZone, Action: models.ActionDeleted, ID: id})
	s.reply(c, OpDeleteZone, http.StatusOK, gin.H{"status": "success", "message": "Polygon deleted successfully"})
}

func (s *Server) listCameras(c *gin.Context) {
	if !s.begin(c, OpListCameras) {
		return
	}
	idx := geometry.NewZoneIndex(s.Zones())
	fc := geojson.NewFeatureCollection()
	for _, cam := range s.Cameras() {
		f := geojson.NewPointFeature(geometry.Coordinates(cam.Location))
		f.SetProperty("id", cam.ID)
		f.SetProperty("name", cam.Name)
		f.SetProperty("url", cam.URL)
		f.SetProperty("rtsp_url", cam.StreamURL)
		if dept := idx.Department(cam.Location); dept != "" {
			f.SetProperty("department_name", dept)
		}
		fc.AddFeature(f)
	}
	s.reply(c, OpListCameras, http.StatusOK, fc)
}

func (s *Server) saveCamera(c *gin.Context) {
	if !s.begin(c, OpSaveCamera) {
		return
	}
	args := &saveCameraArgs{}
	if err := c.ShouldBindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /save_camera call: %v", err)
		s.reply(c, OpSaveCamera, http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if args.Name == "" || args.URL == "" {
		s.reply(c, OpSaveCamera, http.StatusOK, gin.H{"status": "error", "message": "Name and url are required"})
		return
	}
	if len(args.Coordinates) != 2 {
		s.reply(c, OpSaveCamera, http.StatusOK, gin.H{"status": "error", "message": "Coordinates must be [longitude, latitude]"})
		return
	}

	cam := models.Camera{
		ID:        args.ID,
		Name:      args.Name,
		URL:       args.URL,
		StreamURL: args.URL,
		Location:  orb.Point{args.Coordinates[0], args.Coordinates[1]},
	}

	s.mu.Lock()
	if cam.ID != 0 {
		if _, ok := s.cameras[cam.ID]; !ok {
			s.mu.Unlock()
			s.reply(c, OpSaveCamera, http.StatusOK, gin.H{"status": "error", "message": "Camera not found"})
			return
		}
	} else {
		cam.ID = s.nextCameraID
		s.nextCameraID++
	}
	s.cameras[cam.ID] = cam
	s.mu.Unlock()

	s.hub.Publish(models.Change{Entity: models.EntityCamera, Action: models.ActionSaved, ID: cam.ID})
	s.reply(c, OpSaveCamera, http.StatusOK, gin.H{"status": "success", "message": "Camera saved successfully"})
}

func (s *Server) deleteCamera(c *gin.Context) {
	if !s.begin(c, OpDeleteCamera) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.reply(c, OpDeleteCamera, http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	s.mu.Lock()
	_, ok := s.cameras[id]
	delete(s.cameras, id)
	s.mu.Unlock()

	if !ok {
		s.reply(c, OpDeleteCamera, http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}
	s.hub.Publish(models.Change{Entity: models.EntityCamera, Action: models.ActionDeleted, ID: id})
	s.reply(c, OpDeleteCamera, http.StatusOK, gin.H{"status": "success", "message": "Camera deleted successfully"})
}

func (s *Server) getBoundary(c *gin.Context) {
	if !s.begin(c, OpGetBoundary) {
		return
	}
	f := geojson.NewFeature(geometry.PolygonToGeoJSON(s.boundary.Polygon))
	f.SetProperty("name", s.boundary.Name)
	s.reply(c, OpGetBoundary, http.StatusOK, f)
}

func (s *Server) changes(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade change feed connection: %v", err)
		return
	}
	client := NewClient(s.hub, conn)
	select {
	case s.hub.Register <- client:
	case <-s.hub.stop:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// FailNext makes the next call of op answer with status and message.
func (s *Server) FailNext(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{status: status, message: message}
}

// FailAlways makes every call of op fail until Clear.
func (s *Server) FailAlways(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{status: status, message: message, always: true}
}

// RejectNext makes the next call of op answer 200 with status "error".
func (s *Server) RejectNext(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{status: http.StatusOK, message: message, reject: true}
}

func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// Calls returns how many requests reached op, including failed ones.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls is the number of requests across every operation.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.calls {
		n += v
	}
	return n
}

// SeedZone stores z as is. A zero id is assigned the next one.
func (s *Server) SeedZone(z models.Zone) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z.ID == 0 {
		z.ID = s.nextZoneID
	}
	if z.ID >= s.nextZoneID {
		s.nextZoneID = z.ID + 1
	}
	s.zones[z.ID] = z
	return z.ID
}

func (s *Server) SeedCamera(cam models.Camera) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cam.ID == 0 {
		cam.ID = s.nextCameraID
	}
	if cam.ID >= s.nextCameraID {
		s.nextCameraID = cam.ID + 1
	}
	s.cameras[cam.ID] = cam
	return cam.ID
}

// SetNextZoneID sets the id the next created zone receives.
func (s *Server) SetNextZoneID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextZoneID = id
}

// Zones returns the stored zones ordered by id.
func (s *Server) Zones() []models.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	zones := make([]models.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

func (s *Server) Cameras() []models.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	cameras := make([]models.Camera, 0, len(s.cameras))
	for _, cam := range s.cameras {
		cameras = append(cameras, cam)
	}
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].ID < cameras[j].ID })
	return cameras
}

// Publish pushes a change to subscribers without touching the data.
func (s *Server) Publish(ch models.Change) {
	s.hub.Publish(ch)
}

// Subscribers is the number of connected change feed clients.
func (s *Server) Subscribers() int {
	return s.hub.ConnectedClients()
}
