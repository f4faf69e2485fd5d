// Package server is the composition root of sos-server.
//
// Run loads the settings, builds the contact directory, the notification
// transport, the dispatcher and the last-location store, and serves the HTTP
// and gRPC APIs until the context is cancelled.
package server
