package middleware

import (
	"context"

	"hris/internal/domain/auth"
	"hris/internal/requestctx"
)

type ctxKey string

const (
	ctxKeyUser    ctxKey = "user"
	ctxKeyLogUser ctxKey = "log_user"
)

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	ctx = requestctx.WithActor(ctx, user.UserID)
	// Logger sits outside the auth middleware; hand it the caller.
	if slot, ok := ctx.Value(ctxKeyLogUser).(*auth.UserContext); ok {
		*slot = user
	}
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}
