// Package trigger implements the device side of sos-beacon.
//
// Run resolves the current position through the locator cascade, falls back
// to the last known fix when nothing answers, and pushes the alert to the
// server, retrying while the server is unreachable.
package trigger
