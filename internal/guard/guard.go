// Package guard holds the ownership and role checks every mutating workflow
// runs before touching data. Failed checks are 403 NotAuthorized.
package guard

import (
	"context"
	"slices"

	"eventhub/internal/apperr"
	"eventhub/internal/model"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   model.Role
}

type Owned interface {
	OwnerID() string
}

func AssertOwner(entity Owned, p Principal) error {
	if entity.OwnerID() != p.UserID {
		return apperr.NotAuthorized("not authorized to access this resource")
	}
	return nil
}

func AssertRole(p Principal, roles ...model.Role) error {
	if !slices.Contains(roles, p.Role) {
		return apperr.NotAuthorized("role " + string(p.Role) + " is not allowed to perform this action")
	}
	return nil
}

// LoadOwned loads id with load and asserts p owns it. A missing entity is
// reported as NotFound before ownership is considered.
func LoadOwned[T Owned](ctx context.Context, load func(context.Context, string) (T, error), id string, p Principal) (T, error) {
	entity, err := load(ctx, id)
	if err != nil {
		return entity, err
	}
	if err := AssertOwner(entity, p); err != nil {
		var zero T
		return zero, err
	}
	return entity, nil
}
