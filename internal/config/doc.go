// Package config defines the format-agnostic description of the work the
// harness has been asked to do. Both the command line and runbook files
// decode into these structures, so validation and defaulting live here,
// once, rather than per entry point.
package config
