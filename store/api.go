package store

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/shopspring/decimal"
)

// Values of the status field of a save response.
const (
	PayloadSuccess = "success"
	PayloadError   = "error"
)

type SaveZoneRequest struct {
	ID       int64             `json:"id,omitempty"`
	Name     string            `json:"name"`
	Area     decimal.Decimal   `json:"area"`
	Geometry *geojson.Geometry `json:"geometry"`
}

type SaveCameraRequest struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Coordinates []float64 `json:"coordinates"`
}

// SaveResponse covers both save endpoints. Zone saves carry the id,
// camera saves only status and message.
type SaveResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	ID      int64  `json:"id,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
