package workflow

import (
	"context"
	"fmt"
)

// Role is the capacity in which an actor fires a trigger
type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor identifies who performed an action on a report
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is the actor used by background processing
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Label renders the actor for history entries
func (a Actor) Label() string {
	if a.Role == "" {
		return "anonymous"
	}
	if a.Role == RoleSystem || a.ID == "" {
		return string(a.Role)
	}
	return fmt.Sprintf("%s:%s", a.Role, a.ID)
}

type actorKey struct{}

// WithActor stores the acting party in the context for guard evaluation
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored in the context, if any
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// RequireRole builds a guard that passes when the context actor holds one of roles
func RequireRole(roles ...Role) GuardFunc {
	return func(ctx context.Context) bool {
		actor, ok := ActorFrom(ctx)
		if !ok {
			return false
		}
		for _, r := range roles {
			if actor.Role == r {
				return true
			}
		}
		return false
	}
}
