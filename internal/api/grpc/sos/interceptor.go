package sos

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/sos-beacon/internal/logger"
)

// LoggingInterceptor names the request logger after the method, logs the
// outcome and turns handler panics into Internal errors.
func LoggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		ctx = logger.ToContext(ctx, logger.FromContext(base).With("method", info.FullMethod))
		started := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorKV(ctx, "Handler panicked", "panic", r)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			logger.DebugKV(ctx, "Request handled",
				"code", status.Code(err).String(),
				"duration", time.Since(started),
			)
		}()

		return handler(ctx, req)
	}
}
