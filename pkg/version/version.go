// Package version exposes the build version string.
package version

// Version is the current application version.
// Overridden at build time via -ldflags "-X recallgo/pkg/version.Version=...".
var Version = "0.3.0-dev"
