// Package config loads the monitor configuration from an optional YAML file
// and environment variables, applies defaults for every probing, caching and
// scheduling knob, and validates the result before anything is started.
package config
