// Package sos implements the gRPC transport of the alert service.
//
// The service is described by a hand-written ServiceDesc whose messages are
// google.protobuf.Struct values, so no generated code is required. The codec
// helpers in this package are shared by the server and the trigger client.
package sos
