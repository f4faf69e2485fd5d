package contacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

var (
	errDuplicateUser = errors.New("duplicate user id")
	errEmptyUserID   = errors.New("empty user id")
)

// directoryFile is the on-disk layout of the YAML directory.
type directoryFile struct {
	Users []userRecord `yaml:"users"`
}

type userRecord struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Contacts []contactRecord `yaml:"contacts"`
}

type contactRecord struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name,omitempty"`
}

// FileDirectory serves users from a YAML file loaded into memory.
type FileDirectory struct {
	// path is the YAML file location.
	path string

	mu sync.RWMutex
	// users maps ids to users with normalised contacts.
	users map[string]*sos.User
}

// NewFileDirectory reads and validates the YAML directory at path.
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{path: filepath.Clean(path)}

	if err := d.Reload(); err != nil {
		return nil, err
	}

	return d, nil
}

// Reload re-reads the file. On error the previous contents stay in place.
func (d *FileDirectory) Reload() error {
	contents, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read contacts file: %w", err)
	}

	var file directoryFile
	if err = yaml.Unmarshal(contents, &file); err != nil {
		return fmt.Errorf("decode contacts file: %w", err)
	}

	users, err := buildUsers(file.Users)
	if err != nil {
		return fmt.Errorf("contacts file %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()

	return nil
}

// Lookup returns a copy of the user, so callers never share state with the directory.
func (d *FileDirectory) Lookup(_ context.Context, userID string) (*sos.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[strings.TrimSpace(userID)]
	if !ok {
		return nil, sos.ErrUserNotFound
	}

	return user.Clone(), nil
}

// Users returns copies of every user ordered by id.
func (d *FileDirectory) Users() []*sos.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]*sos.User, 0, len(d.users))
	for _, user := range d.users {
		users = append(users, user.Clone())
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users
}

func buildUsers(records []userRecord) (map[string]*sos.User, error) {
	users := make(map[string]*sos.User, len(records))

	for i, record := range records {
		id := strings.TrimSpace(record.ID)
		if id == "" {
			return nil, fmt.Errorf("user #%d: %w", i+1, errEmptyUserID)
		}

		if _, exists := users[id]; exists {
			return nil, fmt.Errorf("%w: %q", errDuplicateUser, id)
		}

		user := &sos.User{
			ID:       id,
			Name:     strings.TrimSpace(record.Name),
			Contacts: make([]sos.Contact, 0, len(record.Contacts)),
		}

		for _, c := range record.Contacts {
			contact, err := sos.NewContact(c.Email, c.Name)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", id, err)
			}

			user.Contacts = append(user.Contacts, contact)
		}

		users[id] = user
	}

	return users, nil
}
