// Package env reads process environment configuration for the binaries:
// plain lookups with fallbacks and the LOG_LEVEL convention.
package env

import "os"

// Get returns the environment variable's value, or defaultValue when unset
// or empty.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
