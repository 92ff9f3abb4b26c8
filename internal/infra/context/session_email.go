package context

import (
	"context"
)

const contextKeySessionEmail = contextKey("sessionEmail")

// SessionEmailFromContext returns the email of the learner the request acts for.
func SessionEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(contextKeySessionEmail).(string)

	return email, ok && email != ""
}

// WithSessionEmail returns a copy of ctx carrying the learner's email for log records.
func WithSessionEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKeySessionEmail, email)
}
