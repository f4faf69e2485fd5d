package contacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

const directoryYAML = `
users:
  - id: u1
    name: Anna Petrova
    contacts:
      - email: " Mom@Example.com "
        name: Mom
      - email: brother@example.com
  - id: lonely
    name: Lonely
`

func writeDirectory(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestFileDirectory_Lookup(t *testing.T) {
	t.Parallel()

	directory, err := NewFileDirectory(writeDirectory(t, directoryYAML))
	require.NoError(t, err)

	user, err := directory.Lookup(context.Background(), " u1 ")
	require.NoError(t, err)
	require.Equal(t, "Anna Petrova", user.Name)
	require.Equal(t, []sos.Contact{
		{Address: "mom@example.com", DisplayName: "Mom"},
		{Address: "brother@example.com"},
	}, user.Contacts)

	lonely, err := directory.Lookup(context.Background(), "lonely")
	require.NoError(t, err)
	require.Empty(t, lonely.Contacts)

	_, err = directory.Lookup(context.Background(), "ghost")
	require.ErrorIs(t, err, sos.ErrUserNotFound)
}

func TestFileDirectory_Users(t *testing.T) {
	t.Parallel()

	directory, err := NewFileDirectory(writeDirectory(t, directoryYAML))
	require.NoError(t, err)

	users := directory.Users()
	require.Len(t, users, 2)
	require.Equal(t, "lonely", users[0].ID)
	require.Equal(t, "u1", users[1].ID)
	require.Len(t, users[1].Contacts, 2)

	users[1].Contacts[0].Address = "changed@example.com"

	user, err := directory.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "mom@example.com", user.Contacts[0].Address)
}

func TestFileDirectory_LookupReturnsCopy(t *testing.T) {
	t.Parallel()

	directory, err := NewFileDirectory(writeDirectory(t, directoryYAML))
	require.NoError(t, err)

	first, err := directory.Lookup(context.Background(), "u1")
	require.NoError(t, err)

	first.Contacts[0].Address = "changed@example.com"

	second, err := directory.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "mom@example.com", second.Contacts[0].Address)
}

func TestFileDirectory_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		wantErr  error
	}{
		{
			name:     "bad email",
			contents: "users:\n  - id: u1\n    contacts:\n      - email: not-an-email\n",
			wantErr:  sos.ErrInvalidInput,
		},
		{
			name:     "duplicate user",
			contents: "users:\n  - id: u1\n  - id: u1\n",
			wantErr:  errDuplicateUser,
		},
		{
			name:     "empty id",
			contents: "users:\n  - name: nobody\n",
			wantErr:  errEmptyUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewFileDirectory(writeDirectory(t, tt.contents))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewFileDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileDirectory_ReloadKeepsOldContentsOnError(t *testing.T) {
	t.Parallel()

	path := writeDirectory(t, directoryYAML)

	directory, err := NewFileDirectory(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("users: [oops"), 0o600))
	require.Error(t, directory.Reload())

	_, err = directory.Lookup(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: u2\n"), 0o600))
	require.NoError(t, directory.Reload())

	_, err = directory.Lookup(context.Background(), "u1")
	require.ErrorIs(t, err, sos.ErrUserNotFound)
}
