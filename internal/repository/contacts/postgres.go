package contacts

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

//go:embed sql/*.sql
var migrationFS embed.FS

const (
	selectUserQuery = `SELECT name FROM users WHERE id = $1`

	selectContactsQuery = `
SELECT email, name
FROM emergency_contacts
WHERE user_id = $1
ORDER BY position, id`

	upsertUserQuery = `
INSERT INTO users (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	deleteContactsQuery = `DELETE FROM emergency_contacts WHERE user_id = $1`

	insertContactQuery = `
INSERT INTO emergency_contacts (user_id, position, email, name)
VALUES ($1, $2, $3, $4)`
)

// database is the part of pgxpool.Pool the directory uses.
type database interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresDirectory serves users from PostgreSQL.
type PostgresDirectory struct {
	db database
}

// OpenPostgres connects to the database and checks the connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresDirectory, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresDirectory{db: pool}, nil
}

// Migrate applies the embedded schema files in name order. They are idempotent.
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	for _, name := range names {
		body, readErr := migrationFS.ReadFile("sql/" + name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}

		if _, err = d.db.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	return nil
}

// Lookup reads the user and its contacts in one read-only snapshot.
func (d *PostgresDirectory) Lookup(ctx context.Context, userID string) (*sos.User, error) {
	userID = strings.TrimSpace(userID)

	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // Read-only transaction, nothing to keep.

	user := &sos.User{ID: userID}

	if err = tx.QueryRow(ctx, selectUserQuery, userID).Scan(&user.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sos.ErrUserNotFound
		}

		return nil, fmt.Errorf("select user: %w", err)
	}

	rows, err := tx.Query(ctx, selectContactsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[contactRecord])
	if err != nil {
		return nil, fmt.Errorf("scan contacts: %w", err)
	}

	user.Contacts = make([]sos.Contact, 0, len(records))

	for _, record := range records {
		contact, contactErr := sos.NewContact(record.Email, record.Name)
		if contactErr != nil {
			return nil, fmt.Errorf("user %q: stored contact: %w", userID, contactErr)
		}

		user.Contacts = append(user.Contacts, contact)
	}

	return user, nil
}

// Import stores the users in one transaction. Each imported user's contact
// list replaces the stored one; users absent from the input are kept.
func (d *PostgresDirectory) Import(ctx context.Context, users []*sos.User) error {
	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // No-op after a successful commit.

	for _, user := range users {
		if _, err = tx.Exec(ctx, upsertUserQuery, user.ID, user.Name); err != nil {
			return fmt.Errorf("upsert user %q: %w", user.ID, err)
		}

		if _, err = tx.Exec(ctx, deleteContactsQuery, user.ID); err != nil {
			return fmt.Errorf("clear contacts of %q: %w", user.ID, err)
		}

		for position, contact := range user.Contacts {
			_, err = tx.Exec(ctx, insertContactQuery, user.ID, position, contact.Address, contact.DisplayName)
			if err != nil {
				return fmt.Errorf("insert contact of %q: %w", user.ID, err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	return nil
}

// Close releases the pool.
func (d *PostgresDirectory) Close() {
	d.db.Close()
}
