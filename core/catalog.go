package core

import (
	"fmt"
	"strings"
)

// Role is the closed set of dashboard roles. Permission sets are
// enumerated independently per role, not derived from one another.
type Role string

const (
	RoleSuperAdmin  Role = "super-admin"
	RoleOrgAdmin    Role = "org-admin"
	RoleOrgDirector Role = "org-director"
	RoleOrgManager  Role = "org-manager"
	RoleOrgMember   Role = "org-member"
	RoleGuest       Role = "guest"
)

// Roles returns every role in the enumeration, broadest first.
func Roles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleOrgAdmin,
		RoleOrgDirector,
		RoleOrgManager,
		RoleOrgMember,
		RoleGuest,
	}
}

func (r Role) Validate() error {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleOrgDirector, RoleOrgManager, RoleOrgMember, RoleGuest:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
}

// ParseRole normalizes untrusted input into a Role before it reaches
// any catalog lookup.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	if err := role.Validate(); err != nil {
		return "", err
	}
	return role, nil
}

// Capability is one boolean permission flag consulted by gated UI
// surfaces.
type Capability string

const (
	CapManageSystem        Capability = "canManageSystem"
	CapManageDatabase      Capability = "canManageDatabase"
	CapConfigureSSO        Capability = "canConfigureSSO"
	CapManageOrganization  Capability = "canManageOrganization"
	CapManageUsers         Capability = "canManageUsers"
	CapViewFinances        Capability = "canViewFinances"
	CapManageAssets        Capability = "canManageAssets"
	CapManageManufacturing Capability = "canManageManufacturing"
	CapManageMarket        Capability = "canManageMarket"
	CapManageMining        Capability = "canManageMining"
	CapViewKillRecords     Capability = "canViewKillRecords"
	CapManageIncome        Capability = "canManageIncome"
	CapViewAllMembers      Capability = "canViewAllMembers"
	CapBulkEdit            Capability = "canBulkEdit"
	CapExport              Capability = "canExport"
	CapDelete              Capability = "canDelete"
)

// Capabilities returns every capability key. The list and the fields of
// PermissionSet move together.
func Capabilities() []Capability {
	return []Capability{
		CapManageSystem,
		CapManageDatabase,
		CapConfigureSSO,
		CapManageOrganization,
		CapManageUsers,
		CapViewFinances,
		CapManageAssets,
		CapManageManufacturing,
		CapManageMarket,
		CapManageMining,
		CapViewKillRecords,
		CapManageIncome,
		CapViewAllMembers,
		CapBulkEdit,
		CapExport,
		CapDelete,
	}
}

// PermissionSet defines every capability for a role. One bool field per
// capability key keeps the set exhaustive at compile time.
type PermissionSet struct {
	ManageSystem        bool
	ManageDatabase      bool
	ConfigureSSO        bool
	ManageOrganization  bool
	ManageUsers         bool
	ViewFinances        bool
	ManageAssets        bool
	ManageManufacturing bool
	ManageMarket        bool
	ManageMining        bool
	ViewKillRecords     bool
	ManageIncome        bool
	ViewAllMembers      bool
	BulkEdit            bool
	Export              bool
	Delete              bool
}

// Allows answers one capability flag. Unknown capabilities grant
// nothing.
func (s PermissionSet) Allows(capability Capability) bool {
	switch capability {
	case CapManageSystem:
		return s.ManageSystem
	case CapManageDatabase:
		return s.ManageDatabase
	case CapConfigureSSO:
		return s.ConfigureSSO
	case CapManageOrganization:
		return s.ManageOrganization
	case CapManageUsers:
		return s.ManageUsers
	case CapViewFinances:
		return s.ViewFinances
	case CapManageAssets:
		return s.ManageAssets
	case CapManageManufacturing:
		return s.ManageManufacturing
	case CapManageMarket:
		return s.ManageMarket
	case CapManageMining:
		return s.ManageMining
	case CapViewKillRecords:
		return s.ViewKillRecords
	case CapManageIncome:
		return s.ManageIncome
	case CapViewAllMembers:
		return s.ViewAllMembers
	case CapBulkEdit:
		return s.BulkEdit
	case CapExport:
		return s.Export
	case CapDelete:
		return s.Delete
	}
	return false
}

// IsZero reports whether no capability is granted. The session store
// rejects stored principals carrying a zero set.
func (s PermissionSet) IsZero() bool {
	return s == PermissionSet{}
}

// PermissionsFor returns the full capability set for a role. It is total
// over the role enumeration and fails with ErrInvalidRole outside it;
// callers validate untrusted input with ParseRole first.
func PermissionsFor(role Role) (PermissionSet, error) {
	switch role {
	case RoleSuperAdmin:
		return PermissionSet{
			ManageSystem:        true,
			ManageDatabase:      true,
			ConfigureSSO:        true,
			ManageOrganization:  true,
			ManageUsers:         true,
			ViewFinances:        true,
			ManageAssets:        true,
			ManageManufacturing: true,
			ManageMarket:        true,
			ManageMining:        true,
			ViewKillRecords:     true,
			ManageIncome:        true,
			ViewAllMembers:      true,
			BulkEdit:            true,
			Export:              true,
			Delete:              true,
		}, nil
	case RoleOrgAdmin:
		return PermissionSet{
			ManageSystem:        false,
			ManageDatabase:      false,
			ConfigureSSO:        true,
			ManageOrganization:  true,
			ManageUsers:         true,
			ViewFinances:        true,
			ManageAssets:        true,
			ManageManufacturing: true,
			ManageMarket:        true,
			ManageMining:        true,
			ViewKillRecords:     true,
			ManageIncome:        true,
			ViewAllMembers:      true,
			BulkEdit:            true,
			Export:              true,
			Delete:              true,
		}, nil
	case RoleOrgDirector:
		return PermissionSet{
			ManageSystem:        false,
			ManageDatabase:      false,
			ConfigureSSO:        true,
			ManageOrganization:  true,
			ManageUsers:         true,
			ViewFinances:        true,
			ManageAssets:        true,
			ManageManufacturing: true,
			ManageMarket:        true,
			ManageMining:        true,
			ViewKillRecords:     true,
			ManageIncome:        true,
			ViewAllMembers:      true,
			BulkEdit:            true,
			Export:              true,
			Delete:              false,
		}, nil
	case RoleOrgManager:
		return PermissionSet{
			ManageSystem:        false,
			ManageDatabase:      false,
			ConfigureSSO:        false,
			ManageOrganization:  false,
			ManageUsers:         false,
			ViewFinances:        false,
			ManageAssets:        true,
			ManageManufacturing: true,
			ManageMarket:        true,
			ManageMining:        true,
			ViewKillRecords:     true,
			ManageIncome:        true,
			ViewAllMembers:      true,
			BulkEdit:            true,
			Export:              true,
			Delete:              false,
		}, nil
	case RoleOrgMember:
		return PermissionSet{
			ManageSystem:        false,
			ManageDatabase:      false,
			ConfigureSSO:        false,
			ManageOrganization:  false,
			ManageUsers:         false,
			ViewFinances:        false,
			ManageAssets:        true,
			ManageManufacturing: true,
			ManageMarket:        false,
			ManageMining:        true,
			ViewKillRecords:     true,
			ManageIncome:        false,
			ViewAllMembers:      false,
			BulkEdit:            false,
			Export:              true,
			Delete:              false,
		}, nil
	case RoleGuest:
		return PermissionSet{}, nil
	}
	return PermissionSet{}, fmt.Errorf("%w: %q", ErrInvalidRole, string(role))
}
