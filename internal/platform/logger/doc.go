// Package logger provides structured logging for the application.
//
// It uses the standard library log/slog package with a JSON handler and
// carries request- and job-scoped loggers through context.Context.
package logger
