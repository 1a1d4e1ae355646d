package internal

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// GetSentryHubFromContextOrDefault is a version of sentry.GetHubFromContext which
// falls back to sentry.CurrentHub if the given context has not been attached a hub.
//
// The sentry HTTP middleware attaches a hub to request contexts, so handlers can
// use sentry.GetHubFromContext directly. Background work (avatar fetches, the
// deferred resort timer) has no such hub, hence the fallback.
//
// The returned pointer is always nonnil.
func GetSentryHubFromContextOrDefault(ctx context.Context) *sentry.Hub {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return hub
}
