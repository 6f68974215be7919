// Package fingerprint maps a raw error event to a stable identity string
// used for deduplication.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// Truncation lengths applied before hashing. Near-duplicate stack traces with
// volatile suffixes (line numbers from bundled code, timestamps embedded in
// messages) still collapse to the same fingerprint. These are tuning
// heuristics, not a wire format.
const (
	MessageTruncateLen = 100
	StackTruncateLen   = 200
)

// ASCII unit separator; cannot appear in any of the joined fields by accident.
const fieldSep = "\x1f"

// Compute returns the stable fingerprint for an event: a lowercase hex SHA-256
// over (source, module, truncated message, truncated stack trace). Pure and
// deterministic; absent fields hash as empty strings.
func Compute(event models.ErrorEvent) string {
	return compute(event, MessageTruncateLen, StackTruncateLen)
}

func compute(event models.ErrorEvent, msgLen, stackLen int) string {
	parts := []string{
		event.Source,
		event.Module,
		truncateRunes(event.Message, msgLen),
		truncateRunes(event.StackTrace, stackLen),
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return fmt.Sprintf("%x", hash)
}

// truncateRunes returns the first n runes of s without splitting UTF-8 sequences.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
