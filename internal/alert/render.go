package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

const maxStackLines = 20

// Subject builds the one-line alert subject for a record.
func Subject(rec *models.ErrorRecord) string {
	module := rec.Module
	if module == "" {
		module = "unknown"
	}
	tag := "new error"
	if rec.OccurrenceCount > 1 {
		tag = fmt.Sprintf("%d occurrences", rec.OccurrenceCount)
	}
	return fmt.Sprintf("[errwatch] %s/%s: %s (%s)", rec.Source, module, firstLine(rec.SampleMessage), tag)
}

// Body builds the plain-text alert body for a record.
func Body(rec *models.ErrorRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Error: %s\n", rec.SampleMessage)
	fmt.Fprintf(&b, "Source: %s\n", rec.Source)
	if rec.Module != "" {
		fmt.Fprintf(&b, "Module: %s\n", rec.Module)
	}
	fmt.Fprintf(&b, "Occurrences: %d\n", rec.OccurrenceCount)
	fmt.Fprintf(&b, "First seen: %s\n", rec.FirstSeenAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Last seen: %s\n", rec.LastSeenAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Fingerprint: %s\n", rec.Fingerprint)

	if len(rec.SampleContext) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(rec.SampleContext))
		for k := range rec.SampleContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, rec.SampleContext[k])
		}
	}

	if rec.SampleStackTrace != "" {
		b.WriteString("\nStack trace:\n")
		b.WriteString(truncateLines(rec.SampleStackTrace, maxStackLines))
		b.WriteString("\n")
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-n)
}
