package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

func sampleRecord() *models.ErrorRecord {
	return &models.ErrorRecord{
		ID:              uuid.New(),
		Fingerprint:     "fp-render",
		Source:          models.SourceBackend,
		Module:          "Quote",
		Status:          models.StatusNew,
		OccurrenceCount: 10,
		FirstSeenAt:     time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		LastSeenAt:      time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC),
		SampleMessage:   "DB timeout\nwhile saving quote",
		SampleStackTrace: "at saveQuote (quote.go:42)\nat handleSubmit (http.go:90)",
		SampleContext:    map[string]any{"endpoint": "/api/quotes", "http_method": "POST"},
	}
}

func TestSubject(t *testing.T) {
	rec := sampleRecord()
	subject := Subject(rec)

	if !strings.Contains(subject, "backend/Quote") {
		t.Errorf("subject should name source and module: %q", subject)
	}
	if !strings.Contains(subject, "DB timeout") {
		t.Errorf("subject should carry the first message line: %q", subject)
	}
	if strings.Contains(subject, "while saving quote") {
		t.Errorf("subject must not include later message lines: %q", subject)
	}
	if !strings.Contains(subject, "10 occurrences") {
		t.Errorf("subject should carry the occurrence count: %q", subject)
	}
}

func TestSubject_FirstOccurrence(t *testing.T) {
	rec := sampleRecord()
	rec.OccurrenceCount = 1
	if !strings.Contains(Subject(rec), "new error") {
		t.Errorf("first occurrence should be labelled as new: %q", Subject(rec))
	}
}

func TestSubject_MissingModule(t *testing.T) {
	rec := sampleRecord()
	rec.Module = ""
	if !strings.Contains(Subject(rec), "backend/unknown") {
		t.Errorf("missing module should render as unknown: %q", Subject(rec))
	}
}

func TestBody(t *testing.T) {
	body := Body(sampleRecord())

	for _, want := range []string{
		"DB timeout",
		"Source: backend",
		"Module: Quote",
		"Occurrences: 10",
		"First seen: 2026-03-10T08:00:00Z",
		"Last seen: 2026-03-10T12:30:00Z",
		"Fingerprint: fp-render",
		"endpoint: /api/quotes",
		"http_method: POST",
		"at saveQuote (quote.go:42)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBody_TruncatesLongStacks(t *testing.T) {
	rec := sampleRecord()
	rec.SampleStackTrace = strings.Repeat("at frame (deep.go:1)\n", 60)

	body := Body(rec)
	if !strings.Contains(body, "more lines)") {
		t.Errorf("long stacks should be truncated with a marker:\n%s", body)
	}
	if strings.Count(body, "at frame") > maxStackLines {
		t.Errorf("expected at most %d stack lines", maxStackLines)
	}
}

func TestBody_OmitsEmptySections(t *testing.T) {
	rec := sampleRecord()
	rec.Module = ""
	rec.SampleStackTrace = ""
	rec.SampleContext = nil

	body := Body(rec)
	if strings.Contains(body, "Module:") {
		t.Error("empty module should be omitted")
	}
	if strings.Contains(body, "Stack trace:") {
		t.Error("empty stack should be omitted")
	}
	if strings.Contains(body, "Context:") {
		t.Error("empty context should be omitted")
	}
}
