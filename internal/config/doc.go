// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// Settings are optional: a missing file yields Default values. Validate fills
// defaults for empty fields and rejects malformed URLs and image signatures.
package config
