package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry wires crash reporting. An empty DSN disables it silently so
// local development needs no Sentry project.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
