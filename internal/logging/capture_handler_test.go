package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type captured struct {
	message string
	meta    map[string]any
}

// recordingCapture collects callback invocations.
type recordingCapture struct {
	mu    sync.Mutex
	calls []captured
}

func (c *recordingCapture) fn(message string, meta map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, captured{message: message, meta: meta})
}

func TestCaptureHandler_ForwardsErrorRecords(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingCapture{}
	logger := slog.New(NewCaptureHandler(slog.NewJSONHandler(&buf, nil), sink.fn))

	logger.Error("quote submission failed", "module", "Quote", "order_id", "ord_42")

	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(sink.calls))
	}
	call := sink.calls[0]
	if call.message != "quote submission failed" {
		t.Errorf("unexpected message %q", call.message)
	}
	if call.meta["module"] != "Quote" {
		t.Errorf("expected module attr forwarded, got %v", call.meta)
	}
	if call.meta["order_id"] != "ord_42" {
		t.Errorf("expected order_id attr forwarded, got %v", call.meta)
	}

	// The record still reaches the wrapped handler.
	if !strings.Contains(buf.String(), "quote submission failed") {
		t.Error("record should pass through to the inner handler")
	}
}

func TestCaptureHandler_IgnoresNonErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingCapture{}
	logger := slog.New(NewCaptureHandler(slog.NewJSONHandler(&buf, nil), sink.fn))

	logger.Info("request served", "status", 200)
	logger.Warn("cache miss", "key", "stats")
	logger.Debug("noise")

	if len(sink.calls) != 0 {
		t.Fatalf("non-error records must not be captured, got %d calls", len(sink.calls))
	}
	if !strings.Contains(buf.String(), "request served") {
		t.Error("info record should pass through to the inner handler")
	}
}

func TestCaptureHandler_CapturesEvenWhenInnerFiltersErrors(t *testing.T) {
	var buf bytes.Buffer
	// Inner handler only emits at a level above error.
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError + 4})
	sink := &recordingCapture{}
	logger := slog.New(NewCaptureHandler(inner, sink.fn))

	logger.Error("silenced but captured")

	if len(sink.calls) != 1 {
		t.Fatalf("expected capture despite inner filtering, got %d calls", len(sink.calls))
	}
	if strings.Contains(buf.String(), "silenced but captured") {
		t.Error("inner handler's level filter should still apply to output")
	}
}

func TestCaptureHandler_NilCallbackIsTransparent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCaptureHandler(slog.NewJSONHandler(&buf, nil), nil))

	logger.Error("boom")

	if !strings.Contains(buf.String(), "boom") {
		t.Error("record should pass through with a nil callback")
	}
}

func TestCaptureHandler_WithAttrsKeepsCapture(t *testing.T) {
	sink := &recordingCapture{}
	base := slog.New(NewCaptureHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), sink.fn))
	logger := base.With("request_id", "req-1")

	logger.Error("downstream failure", "module", "Newsletter")

	if len(sink.calls) != 1 {
		t.Fatalf("expected capture through derived logger, got %d calls", len(sink.calls))
	}
	if sink.calls[0].meta["module"] != "Newsletter" {
		t.Errorf("record attrs should be forwarded, got %v", sink.calls[0].meta)
	}
}

func TestCaptureHandler_ForwardsBoundAttrs(t *testing.T) {
	sink := &recordingCapture{}
	base := slog.New(NewCaptureHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), sink.fn))
	logger := base.With("module", "Quote", "stack_trace", "at handleQuote (quote.go:42)")

	logger.Error("DB timeout")

	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(sink.calls))
	}
	meta := sink.calls[0].meta
	if meta["module"] != "Quote" {
		t.Errorf("attrs bound via With should reach the callback, got %v", meta)
	}
	if meta["stack_trace"] != "at handleQuote (quote.go:42)" {
		t.Errorf("bound stack_trace should reach the callback, got %v", meta)
	}
}

func TestCaptureHandler_RecordAttrsOverrideBound(t *testing.T) {
	sink := &recordingCapture{}
	base := slog.New(NewCaptureHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), sink.fn))
	logger := base.With("module", "Quote")

	logger.Error("DB timeout", "module", "Billing")

	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(sink.calls))
	}
	if sink.calls[0].meta["module"] != "Billing" {
		t.Errorf("record attr should win over bound attr, got %v", sink.calls[0].meta)
	}
}

func TestCaptureHandler_WithGroupQualifiesKeys(t *testing.T) {
	sink := &recordingCapture{}
	base := slog.New(NewCaptureHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), sink.fn))
	logger := base.With("module", "Quote").WithGroup("db").With("host", "pg-1")

	logger.Error("DB timeout", "query", "upsert")

	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(sink.calls))
	}
	meta := sink.calls[0].meta
	if meta["module"] != "Quote" {
		t.Errorf("attr bound before the group should stay unqualified, got %v", meta)
	}
	if meta["db.host"] != "pg-1" {
		t.Errorf("attr bound inside the group should carry the group key, got %v", meta)
	}
	if meta["db.query"] != "upsert" {
		t.Errorf("record attr should carry the open group key, got %v", meta)
	}
}
