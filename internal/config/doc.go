// Package config loads, normalizes, and validates clipwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLIPWATCH_DATA_DIR and CLIPWATCH_ENGINE_URL. Every working directory is
// derived from the data dir unless set explicitly, so the upload, watched,
// clip and template folders stay together by default.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
