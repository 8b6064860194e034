// Package authz implements the Authorization Mediator: the request-scoped
// gate combining principal, household membership, and a declared role
// requirement. The evaluation order below is a Go-idiom port of a Python
// authorize_household decorator — a function call instead of a decorator,
// a typed error instead of a bare raised Exception.
package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/auth"
	"github.com/lavente-household/authcore/internal/household"
)

// Requirement is the role a household-scoped handler declares, read from
// the route table in internal/api/router.go.
type Requirement int

const (
	Member Requirement = iota
	Admin
	AdminOrSelf
)

// Request carries the inputs the mediator needs: the authenticated
// principal, the target household, and — for AdminOrSelf — the user_id path
// parameter being acted upon.
type Request struct {
	Principal   auth.Principal
	HouseholdID uuid.UUID
	UserID      uuid.UUID // only required when Required == AdminOrSelf
	HasUserID   bool
	Required    Requirement
}

type Mediator struct {
	registry *household.Registry
}

func NewMediator(registry *household.Registry) *Mediator {
	return &Mediator{registry: registry}
}

// Authorize runs the 7-step grant/deny evaluation below. Misuse — a zero
// HouseholdID, or AdminOrSelf without a UserID — is a programmer error and
// is surfaced as apperr.Internal rather than silently granted or panicking.
func (m *Mediator) Authorize(ctx context.Context, req Request) error {
	if req.HouseholdID == uuid.Nil {
		return apperr.Internal("authorize: household_id is required", errors.New("misuse of authz.Mediator"))
	}
	if req.Required == AdminOrSelf && !req.HasUserID {
		return apperr.Internal("authorize: user_id is required for AdminOrSelf", errors.New("misuse of authz.Mediator"))
	}

	// 1. Server admin bypasses membership entirely.
	if req.Principal.Admin {
		return nil
	}

	// 2-3. Look up membership.
	member, err := m.registry.Lookup(ctx, req.HouseholdID, req.Principal.ID)
	if errors.Is(err, household.ErrNotMember) {
		if req.Required == AdminOrSelf && req.HasUserID && req.UserID == req.Principal.ID {
			return nil
		}
		return apperr.Forbidden("not a member of this household")
	}
	if err != nil {
		return apperr.Internal("authorize: membership lookup failed", err)
	}

	// 4. MEMBER requirement is satisfied by any membership.
	if req.Required == Member {
		return nil
	}

	// 5. ADMIN requires admin or owner.
	if req.Required == Admin {
		if member.Admin || member.Owner {
			return nil
		}
		return apperr.Forbidden("admin rights required for this household")
	}

	// 6. ADMIN_OR_SELF: admin/owner OR acting on one's own user_id.
	if req.Required == AdminOrSelf {
		if member.Admin || member.Owner {
			return nil
		}
		if req.HasUserID && req.UserID == req.Principal.ID {
			return nil
		}
	}

	// 7. Otherwise deny.
	return apperr.Forbidden("insufficient rights for this household")
}
