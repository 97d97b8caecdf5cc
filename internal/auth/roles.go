package auth

import "strings"

// Role is the closed set of caller roles. The model is flat: no hierarchy, no
// inheritance, and admin is never implied — every operation's allow-list names
// it explicitly or not at all.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleClinicManager Role = "clinic_manager"
	RoleAuditor       Role = "auditor"
	RolePatient       Role = "patient"
)

// Roles lists every defined role. Order is stable for deterministic iteration
// in tests and seeds.
var Roles = []Role{
	RoleAdmin,
	RoleDoctor,
	RoleNurse,
	RoleClinicManager,
	RoleAuditor,
	RolePatient,
}

// ParseRole normalizes and validates a stored role value.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	for _, r := range Roles {
		if r == role {
			return role, true
		}
	}
	return "", false
}

// Operation identifies a protected action on a resource class.
type Operation string

const (
	OpFileUpload   Operation = "file.upload"
	OpFileRead     Operation = "file.read"
	OpFileDownload Operation = "file.download"
	OpFileDelete   Operation = "file.delete"
	OpAuditRead    Operation = "audit.read"
)

// capabilities is the single declarative policy table. Every protected
// operation must appear here with an explicit allow-list; Authorize denies
// anything the table does not name.
var capabilities = map[Operation][]Role{
	OpFileUpload:   {RoleAdmin, RoleDoctor, RoleNurse},
	OpFileRead:     {RoleAdmin, RoleDoctor, RoleNurse, RoleClinicManager, RoleAuditor, RolePatient},
	OpFileDownload: {RoleAdmin, RoleDoctor, RoleNurse, RoleClinicManager, RoleAuditor, RolePatient},
	OpFileDelete:   {RoleAdmin},
	OpAuditRead:    {RoleAdmin, RoleAuditor},
}

// Operations lists every protected operation known to the policy table.
func Operations() []Operation {
	ops := make([]Operation, 0, len(capabilities))
	for op := range capabilities {
		ops = append(ops, op)
	}
	return ops
}

// AllowedRoles returns a copy of the allow-list for op.
func AllowedRoles(op Operation) []Role {
	roles := capabilities[op]
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Authorize reports whether the identity may perform op. The mapping is total:
// every (role, operation) pair resolves to allow or ErrForbidden, never to an
// unhandled case.
func Authorize(identity Identity, op Operation) error {
	for _, allowed := range capabilities[op] {
		if identity.Role == allowed {
			return nil
		}
	}
	return ErrForbidden
}
