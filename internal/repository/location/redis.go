package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/domain/sos/sospb"
)

const redisKeyPrefix = "sos:location:"

// RedisStore keeps coordinates in Redis, each under its own key with a TTL.
type RedisStore struct {
	// client is the Redis connection.
	client redis.UniversalClient
	// ttl is the lifetime of stored coordinates, zero means no expiry.
	ttl time.Duration
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, userID string) (sos.Coordinate, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sos.Coordinate{}, ErrNotFound
		}

		return sos.Coordinate{}, fmt.Errorf("get location: %w", err)
	}

	var record structpb.Struct
	if err = protojson.Unmarshal(data, &record); err != nil {
		return sos.Coordinate{}, fmt.Errorf("decode location: %w", err)
	}

	return sospb.ToCoordinate(&record)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, userID string, coordinate sos.Coordinate) error {
	data, err := protojson.Marshal(sospb.FromCoordinate(coordinate))
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}

	if err = s.client.Set(ctx, redisKeyPrefix+userID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set location: %w", err)
	}

	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
