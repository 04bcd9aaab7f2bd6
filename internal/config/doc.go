// Package config loads the realtime client configuration.
//
// Sources are layered: an optional .env file, a YAML or TOML file with
// ${VAR} expansion, RT_-prefixed environment overrides, then defaults for
// anything still unset.
package config
