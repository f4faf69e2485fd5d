// Package locator resolves the device coordinate through a cascade of
// sources: a single GPS query first, then each configured IP geolocation
// provider in order until one answers with a usable position.
//
// The cascade is an explicit state machine. Every call to Resolver.Resolve
// is an attempt with its own generation number; starting a new attempt
// cancels the previous one, and a superseded attempt never publishes its
// result.
package locator
