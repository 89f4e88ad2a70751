// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidateAndFixConfig sanity-checks tunables that have safe fallbacks and
// fixes them in place, returning a warning per adjustment. Hard requirements
// (JWT secret, port range) stay in validateConfig and fail the load instead.
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	if len(config.Auth.JWTSecret) < 16 {
		warnings = append(warnings, "JWT secret is shorter than 16 characters; tokens are easy to forge")
	}

	// Check server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	if config.Server.WriteTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too short (%v), setting to %v", config.Server.WriteTimeout, minTimeout))
		config.Server.WriteTimeout = minTimeout
	} else if config.Server.WriteTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too long (%v), setting to %v", config.Server.WriteTimeout, maxTimeout))
		config.Server.WriteTimeout = maxTimeout
	}

	if config.Server.IdleTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server idle timeout is too short (%v), setting to %v", config.Server.IdleTimeout, minTimeout))
		config.Server.IdleTimeout = minTimeout
	}

	// Check MongoDB connection string
	if !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb+srv://") {
		warnings = append(warnings, "MongoDB URI is invalid, must start with mongodb:// or mongodb+srv://")
	}

	// Check Redis addresses
	for _, addr := range config.Database.Redis.Addresses {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid Redis address: %s", addr))
			continue
		}
		if host == "" {
			warnings = append(warnings, fmt.Sprintf("Redis address has empty host: %s", addr))
		}
		if port == "" {
			warnings = append(warnings, fmt.Sprintf("Redis address has empty port: %s", addr))
		}
	}

	// Database calls run while a room mutex is held; a missing timeout would
	// let a slow query stall every task queued on that room.
	if config.Database.MongoDB.Timeout <= 0 {
		warnings = append(warnings, "MongoDB timeout is unset, setting to 10s")
		config.Database.MongoDB.Timeout = 10 * time.Second
	}

	if config.WebSocket.SendBufferSize < 16 {
		warnings = append(warnings, fmt.Sprintf("WebSocket send buffer is too small (%d), setting to 16", config.WebSocket.SendBufferSize))
		config.WebSocket.SendBufferSize = 16
	}

	return warnings
}
