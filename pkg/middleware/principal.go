package middleware

import (
	"net/http"

	apperrors "gymgate/pkg/errors"
)

const (
	HeaderClientID = "X-Client-ID"
	HeaderRole     = "X-Role"

	RoleClient  = "client"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// Principal is the authenticated caller as resolved by the upstream
// gateway. The core never re-derives permissions from it; handlers check
// role and ownership once at the boundary.
type Principal struct {
	ID   string
	Role string
}

// PrincipalFrom reads the caller identity headers. Missing identity is an
// Unauthorized error so handlers can fail before touching any service.
func PrincipalFrom(r *http.Request) (Principal, error) {
	id := r.Header.Get(HeaderClientID)
	if id == "" {
		return Principal{}, apperrors.Unauthorized("missing caller identity")
	}

	role := r.Header.Get(HeaderRole)
	switch role {
	case RoleClient, RoleTrainer, RoleAdmin:
	case "":
		role = RoleClient
	default:
		return Principal{}, apperrors.Unauthorized("unknown role: " + role)
	}

	return Principal{ID: id, Role: role}, nil
}

// RequireRole returns Forbidden unless the principal holds one of the
// given roles.
func (p Principal) RequireRole(roles ...string) error {
	for _, role := range roles {
		if p.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden("operation not allowed for role " + p.Role)
}
