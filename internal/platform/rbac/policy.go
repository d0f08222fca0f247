package rbac

import (
	"errors"

	"github.com/google/uuid"
)

// Relationship-scoped rules: who may change whose role, and who may remove
// whom. These are part of the access-control core, not handler code, so every
// caller and every test exercises exactly one copy of each rule.

var (
	ErrPermissionDenied    = errors.New("missing permission for this action")
	ErrSelfRemoval         = errors.New("members cannot remove their own account")
	ErrOwnerProtected      = errors.New("an owner can only be removed by another owner")
	ErrOwnerRoleRestricted = errors.New("only an owner may grant or revoke the owner role")
	ErrRoleNotAssignable   = errors.New("role is not assignable to tenant members")
	ErrRankTooLow          = errors.New("cannot manage a member ranked above you")
)

// CanAssignRole decides whether an actor holding actorRole may change a member
// from targetRole to newRole. A nil return means the assignment is allowed.
//
// Rules, in evaluation order:
//   - newRole must be a ranked tenant role; SUPER_ADMIN and unknown values are
//     never assignable.
//   - the actor needs users:update.
//   - a member who currently is an OWNER may only be re-roled by an OWNER, and
//     granting OWNER requires users:promote-owner.
//   - the actor's rank must cover both the target's current rank and the rank
//     being granted.
func CanAssignRole(actorRole, targetRole, newRole Role) error {
	if Rank(newRole) == 0 {
		return ErrRoleNotAssignable
	}
	if !HasPermission(actorRole, PermissionUsersUpdate) {
		return ErrPermissionDenied
	}
	if targetRole == RoleOwner && actorRole != RoleOwner {
		return ErrOwnerRoleRestricted
	}
	if newRole == RoleOwner && !HasPermission(actorRole, PermissionUsersPromoteOwner) {
		return ErrOwnerRoleRestricted
	}
	if Rank(actorRole) < Rank(targetRole) {
		return ErrRankTooLow
	}
	if Rank(newRole) > Rank(actorRole) {
		return ErrRankTooLow
	}
	return nil
}

// CanRemoveUser decides whether the actor may remove the target member. A nil
// return means the removal is allowed.
//
// Rules, in evaluation order:
//   - nobody removes their own account;
//   - the actor needs users:delete;
//   - an OWNER may only be removed by another OWNER;
//   - the actor's rank must cover the target's rank.
func CanRemoveUser(actorID uuid.UUID, actorRole Role, targetID uuid.UUID, targetRole Role) error {
	if actorID == targetID {
		return ErrSelfRemoval
	}
	if !HasPermission(actorRole, PermissionUsersDelete) {
		return ErrPermissionDenied
	}
	if targetRole == RoleOwner && actorRole != RoleOwner {
		return ErrOwnerProtected
	}
	if Rank(actorRole) < Rank(targetRole) {
		return ErrRankTooLow
	}
	return nil
}

// AssignableRoles returns the roles the actor may grant, in ascending rank
// order. Actors without users:update may grant nothing; OWNER appears only for
// actors holding users:promote-owner. SUPER_ADMIN is never included.
func AssignableRoles(actorRole Role) []Role {
	if !HasPermission(actorRole, PermissionUsersUpdate) {
		return nil
	}
	actorRank := Rank(actorRole)
	out := make([]Role, 0, len(tenantRoles))
	for _, role := range tenantRoles {
		if Rank(role) > actorRank {
			continue
		}
		if role == RoleOwner && !HasPermission(actorRole, PermissionUsersPromoteOwner) {
			continue
		}
		out = append(out, role)
	}
	return out
}
