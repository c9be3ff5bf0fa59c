package constants

// Fixed HTTP paths.
const (
	PathHealth = "/health"
	PathReady  = "/ready"
)
