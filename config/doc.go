// Package config loads host configuration from an optional YAML file with
// HVR_* environment overrides.
//
// Example hvr.yaml:
//
//	app:
//	  id: viewer
//	  version: 2.4.0
//	api:
//	  key_file: /etc/hvr/engine.key
//	platform: desktop
//	cache:
//	  disable: false
//	log:
//	  verbose: true
//	connection:
//	  reconnect_interval: 3s
package config
