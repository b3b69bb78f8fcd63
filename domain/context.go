package domain

import "context"

type contextKey string

// UserIDContextKey is the key under which the authenticated user's ID is
// stored in the request context.
const UserIDContextKey contextKey = "auth_user_id"

// UserIDFromContext retrieves the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDContextKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, id)
}
