// Package location persists the last known coordinate per user.
//
// FileStore keeps coordinates in a local JSON file and is used by the trigger
// to substitute a previous fix when resolution fails. RedisStore keeps them in
// Redis with a TTL and backs the server's location endpoint. Both encode
// coordinates as protobuf JSON.
package location
