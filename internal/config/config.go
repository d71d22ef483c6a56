// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// Build backend selectors for DriverConfig.BuildBackend.
const (
	BackendHost   = "host"
	BackendDocker = "docker"
)

// DriverConfig holds configuration for the release-pipeline binary.
type DriverConfig struct {
	BuildBackend    string        // BackendHost or BackendDocker
	RegistryToken   string        // Upload credential, from env or secret file
	MetricsTextfile string        // Path for Prometheus textfile export ("" to skip)
	NotifyDrainWait time.Duration // Time to wait for pending notifications on exit
}

// LoadDriverConfig loads driver configuration from environment variables.
// REGISTRY_TOKEN takes precedence over REGISTRY_TOKEN_FILE.
func LoadDriverConfig() *DriverConfig {
	token := GetEnv("REGISTRY_TOKEN", "")
	if token == "" {
		token = GetSecretFile(GetEnv("REGISTRY_TOKEN_FILE", ""))
	}
	return &DriverConfig{
		BuildBackend:    GetEnv("BUILD_BACKEND", BackendHost),
		RegistryToken:   token,
		MetricsTextfile: GetEnv("METRICS_TEXTFILE", ""),
		NotifyDrainWait: GetDurationEnv("NOTIFY_DRAIN_TIMEOUT", 10*time.Second),
	}
}
