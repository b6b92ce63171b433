// Package config loads the brightmesh configuration from an optional YAML
// file with ${VAR} expansion, applies environment overrides and validates
// the result.
package config
