package rbac

import (
	"errors"

	"github.com/google/uuid"
)

// MaxInheritanceDepth bounds the parent-role chain. Enforced when a parent is
// assigned, so reads never need defensive cycle handling.
const MaxInheritanceDepth = 10

var (
	ErrInvalidInput       = errors.New("rbac: invalid input")
	ErrRoleNotFound       = errors.New("rbac: role not found")
	ErrPermissionNotFound = errors.New("rbac: permission not found")
	ErrSystemRole         = errors.New("rbac: system roles cannot be modified or deleted")
	ErrRoleInUse          = errors.New("rbac: role is referenced and cannot be deleted")
	ErrDuplicateName      = errors.New("rbac: role name already exists in this scope")
	ErrInheritanceCycle   = errors.New("rbac: parent assignment would create a cycle")
	ErrInheritanceDepth   = errors.New("rbac: parent chain exceeds maximum depth")
)

// Role is a named permission bundle, either system-wide (nil organization) or
// scoped to one organization. System roles are reference data: their
// permission sets and parents are immutable and they cannot be deleted.
type Role struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	IsSystem       bool       `json:"is_system"`
	// ParentID links to an ancestor whose permissions are inherited.
	ParentID  *uuid.UUID `json:"parent_id"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// Permission is an atomic (resource, action) authorization unit. Immutable
// reference data, unique on (resource, action).
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
}

// Key returns the canonical "resource:action" form used in permission checks.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// PermissionRef identifies a permission by its (resource, action) pair in
// check requests.
type PermissionRef struct {
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action"   validate:"required"`
}

func (p PermissionRef) Key() string {
	return p.Resource + ":" + p.Action
}

// RolePermission is one row of the role/permission join, used to load the
// full policy set in a single query.
type RolePermission struct {
	RoleID   uuid.UUID
	Resource string
	Action   string
}
