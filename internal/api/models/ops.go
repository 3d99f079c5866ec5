package models

// Health is the body of /ops/health and /ops/ready.
type Health struct {
	Status    HealthStatus            `json:"status"`
	Time      Timestamp               `json:"time"`
	Version   string                  `json:"version,omitempty"`
	BuildTime string                  `json:"buildTime,omitempty"`
	Checks    map[string]HealthStatus `json:"checks,omitempty"`
}

// SystemStatus is the body of /ops/status. Status is DEGRADED while any
// upstream circuit is not closed; requests still succeed using fallbacks.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
	// Fallbacks lists the degraded behaviours currently served, e.g. SYNTHETIC_ROUTES.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// SubsystemStatus is the outcome of one readiness check.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// ProviderStatus describes one upstream data provider and its circuit breaker.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	Circuit             string       `json:"circuit"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
}
