// Package rest exposes the alert service over HTTP with fiber.
//
// Routes:
//
//	POST /sos/send                 dispatch an alert
//	GET  /sos/contacts/:userId     contact snapshot of a user
//	GET  /sos/location/:userId     last dispatched coordinate of a user
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus metrics
package rest
