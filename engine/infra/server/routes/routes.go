package routes

import "fmt"

const apiVersion = "v0"

// Version returns the API version string used in routing (e.g., "v0").
func Version() string {
	return apiVersion
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
func HealthVersioned() string {
	return Base() + "/health"
}

// Metrics is the Prometheus scrape path.
func Metrics() string {
	return "/metrics"
}
