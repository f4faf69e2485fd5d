// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the alert server with per-call timeouts and
// detection of the device (hostname and OS user) the trigger runs on.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
