package composables

import (
	"context"
	"errors"

	"github.com/costline/costline/pkg/constants"
	"github.com/google/uuid"
)

var ErrNoActor = errors.New("no actor found in context")

// Actor is the identity acting on a request, as asserted by the upstream
// gateway. CanApprove marks the approver capability; ordinary edit capability
// is implied for every authenticated actor.
type Actor struct {
	ID         uuid.UUID
	Name       string
	CanApprove bool
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actor)
}

func UseActor(ctx context.Context) (Actor, error) {
	v := ctx.Value(constants.ActorKey)
	if v == nil {
		return Actor{}, ErrNoActor
	}
	return v.(Actor), nil
}
