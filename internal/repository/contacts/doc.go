// Package contacts implements the emergency contact directory.
//
// FileDirectory reads users and their contacts from a YAML file.
// PostgresDirectory reads them from PostgreSQL inside a read-only
// repeatable-read transaction, so one lookup is a consistent snapshot.
package contacts
