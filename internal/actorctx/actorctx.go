package actorctx

import (
	"context"

	"github.com/geocoder89/usermgmt/internal/domain/user"
)

type ctxKey struct{}

// Actor is the resolved caller attached to a request once the bearer token
// has been verified and the record loaded.
type Actor struct {
	Identity user.Identity
	User     user.User
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)

	return a, ok && a.Identity.ID != 0
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
