// Package config loads and validates loom configuration from TOML files.
//
// Configuration is resolved from an explicit path, ~/.config/loom/config.toml,
// or a loom.toml in the working directory, in that order. Missing files fall
// back to repository defaults so loom can run without any configuration.
package config
