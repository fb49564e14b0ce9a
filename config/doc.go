// Package config loads and validates drivegate's configuration.
//
// Configuration is merged from four sources, highest precedence first:
// CLI flags, DRIVEGATE_* environment variables, YAML config files, and
// built-in defaults. The merged result is unmarshalled into Config and
// checked with go-playground/validator; a deployment missing its
// delegated refresh credential or its issuer fails here, at startup,
// rather than on the first request.
package config
