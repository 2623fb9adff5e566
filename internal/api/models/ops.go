package models

// Health is the body of the liveness endpoint.
type Health struct {
	Status    HealthStatus `json:"status"`
	Timestamp Timestamp    `json:"timestamp"`
}

// Readiness is the body of the readiness endpoint.
type Readiness struct {
	Status    HealthStatus      `json:"status"`
	Timestamp Timestamp         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  Timestamp         `json:"timestamp"`
	Version    string            `json:"version,omitempty"`
	BuildTime  string            `json:"build_time,omitempty"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Dataset             string       `json:"dataset,omitempty"`
	Status              HealthStatus `json:"status"`
	FallbackActive      bool         `json:"fallback_active"`
	ConsecutiveFailures uint32       `json:"consecutive_failures"`
	LastSuccessAt       *Timestamp   `json:"last_success_at,omitempty"`
	LastFailureAt       *Timestamp   `json:"last_failure_at,omitempty"`
	OpenUntil           *Timestamp   `json:"open_until,omitempty"`
	Message             *string      `json:"message,omitempty"`
}
