// Package config defines the settings shared by sos-server and sos-trigger and
// provides helpers to load, validate and save them in YAML format.
//
// Secrets may also come from the environment or an optional .env file so they
// do not have to live in the YAML file.
package config
