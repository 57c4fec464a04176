package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Detail    string    `json:"detail" example:"PDF não foi baixado a tempo"`
	Code      string    `json:"code,omitempty" example:"PDF_DOWNLOAD_ERROR"`
	RequestID string    `json:"request_id,omitempty" example:"3f0c6c1e-0d4e-4f7a-9a57-2f1f5d3b8f20"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/consulta/cndt"`
}

// StatusResponse is returned by the status check
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string                 `json:"status" example:"healthy"`
	LastCheck time.Time              `json:"last_check" example:"2024-01-15T10:30:00Z"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
