// Package access decides what an authenticated caller may touch.
//
// Admins may act on any record. Partners may only read records owned by
// their own partner and may never perform admin-only writes.
package access

import (
	"fmt"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/model"
)

// Caller is the identity behind a request. The partner identity is only
// present for partner callers.
type Caller struct {
	UserID    int64
	role      model.Role
	partnerID int64
}

// Admin returns a caller with unrestricted access.
func Admin(userID int64) Caller {
	return Caller{UserID: userID, role: model.RoleAdmin}
}

// Partner returns a caller restricted to the given partner's records.
func Partner(userID, partnerID int64) Caller {
	return Caller{UserID: userID, role: model.RolePartner, partnerID: partnerID}
}

// FromUser builds a caller from a stored account. Unknown roles and partner
// accounts without a partner are rejected.
func FromUser(u *model.User) (Caller, error) {
	switch u.Role {
	case model.RoleAdmin:
		return Admin(u.ID), nil
	case model.RolePartner:
		if u.PartnerID == nil {
			return Caller{}, apperr.Forbidden("account is not linked to a partner")
		}
		return Partner(u.ID, *u.PartnerID), nil
	default:
		return Caller{}, apperr.Forbidden("unknown role")
	}
}

// Role returns the caller's role; empty for the zero caller.
func (c Caller) Role() model.Role { return c.role }

// IsAdmin reports whether the caller is an admin.
func (c Caller) IsAdmin() bool { return c.role == model.RoleAdmin }

// PartnerID returns the caller's own partner and whether it has one.
func (c Caller) PartnerID() (int64, bool) {
	return c.partnerID, c.role == model.RolePartner
}

// RequireAdmin fails with Forbidden unless the caller is an admin.
func (c Caller) RequireAdmin() error {
	if c.IsAdmin() {
		return nil
	}
	return apperr.Forbidden("admin access required")
}

// CheckPartner fails with Forbidden unless the caller may access records
// owned by partnerID.
func (c Caller) CheckPartner(partnerID int64) error {
	switch c.role {
	case model.RoleAdmin:
		return nil
	case model.RolePartner:
		if c.partnerID == partnerID {
			return nil
		}
		return apperr.Forbidden(fmt.Sprintf("no access to partner %d", partnerID))
	default:
		return apperr.Forbidden("unknown role")
	}
}

// ScopePartner narrows an optional partner filter to what the caller may see.
// Partners are always forced to their own id; asking for another partner
// is Forbidden.
func (c Caller) ScopePartner(requested *int64) (*int64, error) {
	if c.IsAdmin() {
		return requested, nil
	}
	own, ok := c.PartnerID()
	if !ok {
		return nil, apperr.Forbidden("unknown role")
	}
	if requested != nil && *requested != own {
		return nil, apperr.Forbidden(fmt.Sprintf("no access to partner %d", *requested))
	}
	return &own, nil
}
