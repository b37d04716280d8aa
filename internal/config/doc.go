// Package config defines the application's configuration tree and loads it
// from environment variables (SCRIBE_ prefix) and an optional config.yaml,
// validating the result before anything else starts. Every tunable the
// pipeline, providers and server consume lives here.
package config
