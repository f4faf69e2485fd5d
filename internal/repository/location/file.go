package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/domain/sos/sospb"
)

// FileStore persists coordinates to a JSON file on disk, one entry per user.
// JSON is produced and consumed with protojson.
type FileStore struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// NewFileStore creates a store that reads and writes JSON at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Load reads the coordinate of userID from disk.
func (s *FileStore) Load(_ context.Context, userID string) (sos.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return sos.Coordinate{}, err
	}

	record, ok := records.GetFields()[userID]
	if !ok {
		return sos.Coordinate{}, ErrNotFound
	}

	return sospb.ToCoordinate(record.GetStructValue())
}

// Save stores the coordinate of userID, keeping other users' entries.
func (s *FileStore) Save(_ context.Context, userID string, coordinate sos.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if records == nil {
		records = &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}

	records.Fields[userID] = structpb.NewStructValue(sospb.FromCoordinate(coordinate))

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}

	if err = os.WriteFile(s.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write location file: %w", err)
	}

	return nil
}

func (s *FileStore) read() (*structpb.Struct, error) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read location file: %w", err)
	}

	var records structpb.Struct
	if err = protojson.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("decode location file: %w", err)
	}

	if records.Fields == nil {
		records.Fields = map[string]*structpb.Value{}
	}

	return &records, nil
}
