// Package integration holds end-to-end tests that run the real server and
// trigger in process.
package integration
