// Package config resolves omnibuild's settings from, in order of precedence,
// command-line flags, OMNIBUILD_* environment variables, an optional config
// file and built-in defaults.
package config
