package core

// RoleResolver answers capability queries against a principal's stored
// permission set. The set is resolved once at login, role change, or
// session reload, never per query.
type RoleResolver struct{}

func NewRoleResolver() *RoleResolver {
	return &RoleResolver{}
}

// HasPermission is total and side-effect free: a nil principal, an
// inactive principal, or an unknown capability all answer false.
func (r *RoleResolver) HasPermission(principal *Principal, capability Capability) bool {
	if principal == nil || !principal.Active {
		return false
	}
	return principal.Permissions.Allows(capability)
}

// EffectivePermissions returns the stored set for display, e.g. the
// permission-matrix screen. A nil principal has zero capabilities.
func (r *RoleResolver) EffectivePermissions(principal *Principal) PermissionSet {
	if principal == nil {
		return PermissionSet{}
	}
	return principal.Permissions
}

// Attach resolves the principal's role against the catalog and stores
// the result on the principal.
func (r *RoleResolver) Attach(principal *Principal) error {
	if principal == nil {
		return ErrPrincipalNotFound
	}
	permissions, err := PermissionsFor(principal.Role)
	if err != nil {
		return err
	}
	principal.Permissions = permissions
	return nil
}
