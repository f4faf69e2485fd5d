// Package notify groups the notification transports of the alert server.
//
// Each subpackage implements dispatcher.Transport: console writes alerts to
// the log, email sends them over SMTP and natsbus publishes them to NATS for
// downstream delivery services. Ordinary delivery failures are returned as
// rejected results, never as errors.
package notify
