package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/repository/contacts"
)

var (
	// ErrConfigExists is returned by InitConfig when the file is already there.
	ErrConfigExists = errors.New("settings file already exists")
	// errNoDatabase is returned when contacts are imported without a database URL.
	errNoDatabase = errors.New("contacts.database_url is not configured")
)

// InitConfig writes starter settings to path. An existing file is kept
// unless overwrite is set.
func InitConfig(path string, overwrite bool) error {
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !overwrite {
		if _, err := os.Stat(filepath.Clean(path)); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("check settings file: %w", err)
		}
	}

	return config.Save(path, config.Default())
}

// ImportOptions controls copying a YAML contact directory into PostgreSQL.
type ImportOptions struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// File is the YAML directory to import, contacts.file from settings when empty.
	File string
}

// contactImporter stores users in a directory backend.
type contactImporter interface {
	Import(ctx context.Context, users []*sos.User) error
}

// ImportContacts copies the YAML directory into the configured database,
// applying the schema first.
func ImportContacts(ctx context.Context, opts *ImportOptions) error {
	ctx = logger.WithName(ctx, "sos-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if settings.Contacts.DatabaseURL == "" {
		return errNoDatabase
	}

	file := opts.File
	if file == "" {
		file = settings.Contacts.File
	}

	source, err := contacts.NewFileDirectory(file)
	if err != nil {
		return fmt.Errorf("open contact file: %w", err)
	}

	target, err := contacts.OpenPostgres(ctx, settings.Contacts.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open contact database: %w", err)
	}

	defer target.Close()

	if err = target.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate contact database: %w", err)
	}

	return importUsers(ctx, source, target)
}

func importUsers(ctx context.Context, source *contacts.FileDirectory, target contactImporter) error {
	users := source.Users()

	if err := target.Import(ctx, users); err != nil {
		return fmt.Errorf("import contacts: %w", err)
	}

	logger.InfoKV(ctx, "Contacts imported", "users", len(users))

	return nil
}

// reloader is a directory that can re-read its source.
type reloader interface {
	Reload() error
}

// watchReload reloads the directory on every signal until ctx is done.
// A failed reload keeps the previous contents.
func watchReload(ctx context.Context, directory reloader, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if err := directory.Reload(); err != nil {
				logger.ErrorKV(ctx, "Failed to reload contacts", "error", err)
				continue
			}

			logger.Info(ctx, "Contacts reloaded")
		}
	}
}
