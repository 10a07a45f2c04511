// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package logging provides structured logging with OpenTelemetry trace
// context and per-connection match attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	connKey ctxKey = iota
	sessionKey
)

// WithConn returns a context whose log records carry conn_id.
func WithConn(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connKey, connID)
}

// WithSession returns a context whose log records carry session_id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// traceHandler decorates records with service metadata, the active span,
// and any connection or session id stored in the context.
type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	if id, ok := ctx.Value(connKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("conn_id", id))
	}
	if id, ok := ctx.Value(sessionKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("session_id", id))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{handler: h.handler.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{handler: h.handler.WithGroup(name), service: h.service, version: h.version}
}

// Options selects the output format and minimum level.
type Options struct {
	// Format is "json" (default) or "text".
	Format string
	// Level is debug, info (default), warn, or error.
	Level string
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a logger writing to w, or os.Stderr if w is nil.
func Setup(service, version string, opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, handlerOpts)
	} else {
		base = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(&traceHandler{handler: base, service: service, version: version})
}

// SetDefault installs a Setup logger as the slog default and returns it.
func SetDefault(service, version string, opts Options) *slog.Logger {
	logger := Setup(service, version, opts, nil)
	slog.SetDefault(logger)
	return logger
}
