// Package config loads, normalizes, and validates the TOML configuration for
// the subburn service. Loading resolves the config path, applies defaults,
// expands ~ in all path fields, and rejects unusable values before any
// component starts.
package config
