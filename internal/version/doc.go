// Package version exposes build metadata for the project.
//
// Version, Commit and BuildTime are injected with -ldflags and default to
// local-build values. UserAgent identifies outbound HTTP requests.
package version
