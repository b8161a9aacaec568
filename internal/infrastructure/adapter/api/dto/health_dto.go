package dto

// HealthResponse reports the service status and every dependency check
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
