package appctx

import "context"

type ctxKey string

const userIDKey ctxKey = "userID"

// WithUserID puts the authenticated user id into the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user id from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
