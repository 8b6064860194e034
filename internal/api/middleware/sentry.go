package middleware

import (
	"github.com/getsentry/sentry-go"
)

// SetSentryUser adds user context to the Sentry scope.
func SetSentryUser(userID string, username string, ip string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID, Username: username, IPAddress: ip})
	})
}
