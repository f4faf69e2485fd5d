// Package logger wraps zap to offer a global sugared logger, context helpers
// (ToContext/FromContext/WithName/WithKV) and level parsing.
//
// Services take a context and log through it, so every line carries the
// component name and request-scoped fields such as dispatch_id.
package logger
