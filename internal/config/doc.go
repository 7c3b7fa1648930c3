// Package config provides loading and environment overlay for the relay's
// configuration. Default() is the baseline; Load reads a JSON or YAML file on
// top of it and FromEnv overlays PRICERELAY_* variables.
//
// Example:
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load("/etc/pricerelay.yaml")
//	if err != nil { /* handle */ }
//	if err := config.FromEnv(&cfg); err != nil { /* handle */ }
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config
