// Package logging wires error-level log calls into the capture pipeline
// without a compile-time dependency on the storage or capture packages: the
// capture callback is injected at process start by the composition root.
package logging

import (
	"context"
	"log/slog"
)

// CaptureFunc receives the message and attributes of an error-level log
// record. Implementations must not block; the queue behind the callback
// does its own scheduling and drops on saturation.
type CaptureFunc func(message string, meta map[string]any)

// CaptureHandler is a slog.Handler middleware. Every record passes through to
// the wrapped handler unchanged; records at error level and above are
// additionally forwarded to the capture callback with both the record's
// attributes and any attributes bound earlier via Logger.With.
//
// The pipeline behind the callback must log through a handler chain that does
// not include a CaptureHandler, or its own failure logs would loop back in.
type CaptureHandler struct {
	inner   slog.Handler
	capture CaptureFunc

	// Attributes accumulated through WithAttrs, keys already qualified by
	// the groups open at bind time. prefix qualifies record-level attrs.
	bound  []slog.Attr
	prefix string
}

// NewCaptureHandler wraps inner with capture forwarding. A nil capture
// callback makes the handler a transparent pass-through.
func NewCaptureHandler(inner slog.Handler, capture CaptureFunc) *CaptureHandler {
	return &CaptureHandler{inner: inner, capture: capture}
}

func (h *CaptureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// Error records must reach the capture callback even when the wrapped
	// handler's level filters them out of the log output.
	if level >= slog.LevelError && h.capture != nil {
		return true
	}
	return h.inner.Enabled(ctx, level)
}

func (h *CaptureHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError && h.capture != nil {
		meta := make(map[string]any, len(h.bound)+rec.NumAttrs())
		for _, a := range h.bound {
			meta[a.Key] = a.Value.Resolve().Any()
		}
		rec.Attrs(func(a slog.Attr) bool {
			meta[h.prefix+a.Key] = a.Value.Resolve().Any()
			return true
		})
		h.capture(rec.Message, meta)
	}
	if !h.inner.Enabled(ctx, rec.Level) {
		return nil
	}
	return h.inner.Handle(ctx, rec)
}

func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make([]slog.Attr, 0, len(h.bound)+len(attrs))
	bound = append(bound, h.bound...)
	for _, a := range attrs {
		bound = append(bound, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &CaptureHandler{
		inner:   h.inner.WithAttrs(attrs),
		capture: h.capture,
		bound:   bound,
		prefix:  h.prefix,
	}
}

func (h *CaptureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &CaptureHandler{
		inner:   h.inner.WithGroup(name),
		capture: h.capture,
		bound:   h.bound,
		prefix:  h.prefix + name + ".",
	}
}
