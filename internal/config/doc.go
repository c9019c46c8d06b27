// Package config loads and validates the patchwatch TOML configuration.
//
// Configuration resolves in order: explicit path, $PATCHWATCH_CONFIG, then
// ~/.config/patchwatch/config.toml. Secrets (API keys) may be supplied via
// environment variables so config files stay shareable.
package config
