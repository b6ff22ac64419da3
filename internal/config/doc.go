// Package config loads, normalizes, and validates nemoship configuration.
//
// Settings come from TOML (default ~/.config/nemoship/config.toml, then
// ./nemoship.toml), optional .env files, and a handful of environment
// fallbacks such as AWS_REGION and SM_MODEL_DIR. Load returns a fully
// normalized Config with paths expanded and defaults applied; components
// receive the sections they need through their constructors instead of
// reading global state.
//
// Use CreateSample to scaffold a commented configuration file.
package config
