// Package sospb encodes domain values as google.protobuf.Struct messages.
// The encoding is shared by the gRPC transport and the location stores.
package sospb
