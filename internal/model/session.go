package model

import "strings"

// Role is the operator's session role. It gates editing affordances only.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleEditor   Role = "editor"
	RoleApprover Role = "approver"
)

// Roles lists the roles from least to most privileged.
var Roles = []Role{RoleViewer, RoleEditor, RoleApprover}

// ParseRole normalizes s. The boolean is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleViewer, RoleEditor, RoleApprover:
		return r, true
	}
	return r, false
}

// CanEdit reports whether the role may mutate drafts and mappings.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleApprover
}

// Environment is the configuration environment saved configs belong to.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

// ParseEnvironment normalizes s. The boolean is false for unknown values.
func ParseEnvironment(s string) (Environment, bool) {
	e := Environment(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case EnvDev, EnvProd:
		return e, true
	}
	return e, false
}
