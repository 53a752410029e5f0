package auth

import "fmt"

// Authorize checks that identity holds the required role.
//
// A nil identity means the gate was mounted without authentication in front
// of it; that is denied rather than treated as anonymous access.
func Authorize(identity *Identity, required Role) error {
	if identity == nil {
		return ErrNoIdentity
	}

	switch required {
	case RoleAdmin, RoleClient:
	default:
		return fmt.Errorf("%w: unknown required role %q", ErrForbidden, required)
	}

	switch identity.Role {
	case RoleAdmin, RoleClient:
		if identity.Role != required {
			return fmt.Errorf("%w: role %s cannot access %s routes", ErrForbidden, identity.Role, required)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, identity.Role)
	}
}
