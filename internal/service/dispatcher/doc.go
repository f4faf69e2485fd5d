// Package dispatcher fans an SOS alert out to every emergency contact of a
// user and aggregates the per-contact outcomes into an AlertReport.
//
// Sends run concurrently with a configurable bound. Every send is isolated:
// errors, rejections and panics of the transport become failed outcomes and
// never abort the remaining contacts.
package dispatcher
