package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports the device and each of its endpoints.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	DeviceURL string           `json:"deviceUrl"`
	Endpoints []EndpointStatus `json:"endpoints"`
}

// EndpointStatus represents the status of one device endpoint.
type EndpointStatus struct {
	Endpoint      string       `json:"endpoint"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Successes     int64        `json:"successes"`
	Failures      int64        `json:"failures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
