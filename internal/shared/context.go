package shared

import "context"

type actorContextKey struct{}

// Actor is the authenticated caller resolved from a bearer token.
type Actor struct {
	UserID int64
	Role   string
	Token  string
}

// HasRole reports whether the actor carries one of the given role slugs.
func (a *Actor) HasRole(slugs ...string) bool {
	if a == nil {
		return false
	}
	for _, s := range slugs {
		if a.Role == s {
			return true
		}
	}
	return false
}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
