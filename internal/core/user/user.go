package user

import "strings"

// Role is the fixed account tier. Roles are not user-creatable.
type Role string

const (
	RoleMaster Role = "Master"
	RoleAdmin  Role = "Admin"
	RoleUser   Role = "User"
)

// MaxMasterUsers caps the number of Master accounts system-wide.
const MaxMasterUsers = 3

var Roles = []Role{RoleMaster, RoleAdmin, RoleUser}

func (r Role) IsValid() bool {
	switch r {
	case RoleMaster, RoleAdmin, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole matches case-insensitively and reports whether s names a known role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return Role(s), false
}

// Well-known permission names seeded at install time.
const (
	PermGenerateInvoice   = "GenerateInvoice"
	PermEditTemplate      = "EditTemplate"
	PermViewAllInvoices   = "ViewAllInvoices"
	PermManageUsers       = "ManageUsers"
	PermManagePermissions = "ManagePermissions"
	PermManagePositions   = "ManagePositions"
)

var AllPermissions = []string{
	PermGenerateInvoice,
	PermEditTemplate,
	PermViewAllInvoices,
	PermManageUsers,
	PermManagePermissions,
	PermManagePositions,
}

// Caller is the minimal identity the authorization layer needs about the acting user.
type Caller struct {
	ID    int64
	Email string
	Role  Role
}
