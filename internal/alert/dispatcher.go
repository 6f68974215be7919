// Package alert renders and delivers notifications for error records.
// Dispatchers report transport failures as errors; they never panic into the
// capture pipeline.
package alert

import (
	"context"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// Dispatcher delivers one alert for a record. A nil return means the alert
// reached the transport; any failure (mail server unreachable, webhook 5xx)
// comes back as an error and the caller decides whether a later occurrence
// re-attempts. No retries happen at this layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *models.ErrorRecord) error
}
