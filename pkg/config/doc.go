// Package config loads the console's configuration from environment
// variables with sensible defaults, validating it once at startup.
package config
