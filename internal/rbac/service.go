package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/zenithhq/zenith/internal/infra/metrics"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	CreateRole(ctx context.Context, role *Role, permissionIDs []uuid.UUID) error
	GetRole(ctx context.Context, id uuid.UUID) (*Role, error)
	GetRoleByName(ctx context.Context, orgID *uuid.UUID, name string) (*Role, error)
	ListRoles(ctx context.Context, orgID *uuid.UUID) ([]*Role, error)
	UpdateRole(ctx context.Context, role *Role, permissionIDs []uuid.UUID) error
	DeleteRole(ctx context.Context, id uuid.UUID) error
	CountMemberships(ctx context.Context, roleID uuid.UUID) (int, error)
	CountChildren(ctx context.Context, roleID uuid.UUID) (int, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	GetPermissions(ctx context.Context, ids []uuid.UUID) ([]*Permission, error)
	GetRolePermissionKeys(ctx context.Context, roleID uuid.UUID) ([]string, error)
	GetRolePermissionList(ctx context.Context, roleID uuid.UUID) ([]*Permission, error)
	ListRolePermissionPairs(ctx context.Context) ([]RolePermission, error)
}

//go:embed casbin_model.conf
var casbinModel string

// Service resolves role permissions and manages role definitions. Permission
// grants and parent links live in the casbin enforcer; resolved permission
// sets are cached per role with a TTL. Every role mutation updates the
// enforcer and invalidates the affected cache entries in the same call.
type Service struct {
	store    Store
	cache    Cache
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
}

func NewService(ctx context.Context, store Store, cache Cache) (*Service, error) {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to load casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to create enforcer: %w", err)
	}

	s := &Service{
		store:    store,
		cache:    cache,
		enforcer: e,
	}

	if err := s.loadPolicies(ctx); err != nil {
		return nil, fmt.Errorf("rbac: failed to load policies: %w", err)
	}
	return s, nil
}

func (s *Service) loadPolicies(ctx context.Context) error {
	pairs, err := s.store.ListRolePermissionPairs(ctx)
	if err != nil {
		return err
	}
	roles, err := s.store.ListRoles(ctx, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pair := range pairs {
		if _, err := s.enforcer.AddPolicy(pair.RoleID.String(), pair.Resource, pair.Action); err != nil {
			return fmt.Errorf("failed to add policy for role %s: %w", pair.RoleID, err)
		}
	}
	for _, role := range roles {
		if role.ParentID == nil {
			continue
		}
		if _, err := s.enforcer.AddGroupingPolicy(role.ID.String(), role.ParentID.String()); err != nil {
			return fmt.Errorf("failed to add parent link for role %s: %w", role.ID, err)
		}
	}
	return nil
}

// GetRolePermissions returns the role's resolved permission set, own grants
// plus everything inherited through the parent chain, as sorted
// "resource:action" keys. Results are cached per role; an unknown role
// resolves to an empty set.
func (s *Service) GetRolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	key := roleID.String()
	if perms, ok := s.cache.Get(key); ok {
		metrics.RecordPermissionCacheLookup(true)
		return perms, nil
	}
	metrics.RecordPermissionCacheLookup(false)

	perms, err := s.resolvePermissions(key)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, perms)
	return perms, nil
}

func (s *Service) resolvePermissions(roleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies, err := s.enforcer.GetImplicitPermissionsForUser(roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to resolve permissions: %w", err)
	}

	keys := make([]string, 0, len(policies))
	for _, p := range policies {
		keys = append(keys, p[1]+":"+p[2])
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// HasPermission reports whether the role's resolved set contains the
// (resource, action) pair.
func (s *Service) HasPermission(ctx context.Context, roleID uuid.UUID, resource, action string) (bool, error) {
	perms, err := s.GetRolePermissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	allowed := slices.Contains(perms, resource+":"+action)
	metrics.RecordPermissionCheck(allowed)
	return allowed, nil
}

// HasAllPermissions reports whether every pair is in the role's resolved set.
// An empty pair list is vacuously true.
func (s *Service) HasAllPermissions(ctx context.Context, roleID uuid.UUID, refs []PermissionRef) (bool, error) {
	perms, err := s.GetRolePermissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	allowed := true
	for _, ref := range refs {
		if !slices.Contains(perms, ref.Key()) {
			allowed = false
			break
		}
	}
	metrics.RecordPermissionCheck(allowed)
	return allowed, nil
}

// HasAnyPermission reports whether at least one pair is in the role's
// resolved set. An empty pair list is false.
func (s *Service) HasAnyPermission(ctx context.Context, roleID uuid.UUID, refs []PermissionRef) (bool, error) {
	perms, err := s.GetRolePermissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	allowed := false
	for _, ref := range refs {
		if slices.Contains(perms, ref.Key()) {
			allowed = true
			break
		}
	}
	metrics.RecordPermissionCheck(allowed)
	return allowed, nil
}

// InvalidateRoleCache drops the cached permission sets of the role and every
// role that inherits from it. Roles not explicitly invalidated refresh when
// their TTL expires.
func (s *Service) InvalidateRoleCache(roleID uuid.UUID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.invalidateSubtree(roleID.String(), 0)
}

// invalidateSubtree walks inheritance links downward. Depth is bounded the
// same way the chain itself is, so a walk can never run away.
func (s *Service) invalidateSubtree(roleID string, depth int) {
	s.cache.Delete(roleID)
	if depth >= MaxInheritanceDepth {
		return
	}
	children, _ := s.enforcer.GetUsersForRole(roleID)
	for _, child := range children {
		s.invalidateSubtree(child, depth+1)
	}
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context, orgID *uuid.UUID) ([]*Role, error) {
	return s.store.ListRoles(ctx, orgID)
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.store.ListPermissions(ctx)
}

// GetDirectPermissions returns only the permissions assigned to the role
// itself, without inherited ones.
func (s *Service) GetDirectPermissions(ctx context.Context, roleID uuid.UUID) ([]*Permission, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.GetRolePermissionList(ctx, roleID)
}

// GetEffectivePermissions returns the role's resolved permission keys,
// failing with ErrRoleNotFound for unknown roles (unlike the check path,
// which treats them as empty).
func (s *Service) GetEffectivePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.GetRolePermissions(ctx, roleID)
}

type CreateRoleParams struct {
	Name           string
	OrganizationID *uuid.UUID
	ParentID       *uuid.UUID
	PermissionIDs  []uuid.UUID
}

func (s *Service) CreateRole(ctx context.Context, params CreateRoleParams) (*Role, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	existing, err := s.store.GetRoleByName(ctx, params.OrganizationID, params.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	perms, err := s.lookupPermissions(ctx, params.PermissionIDs)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	if params.ParentID != nil {
		if err := s.validateParent(ctx, id, params.OrganizationID, *params.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now().Unix()
	role := &Role{
		ID:             id,
		Name:           params.Name,
		OrganizationID: params.OrganizationID,
		IsSystem:       false,
		ParentID:       params.ParentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateRole(ctx, role, params.PermissionIDs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncRolePolicies(role.ID.String(), perms); err != nil {
		return nil, err
	}
	if role.ParentID != nil {
		if _, err := s.enforcer.AddGroupingPolicy(role.ID.String(), role.ParentID.String()); err != nil {
			return nil, fmt.Errorf("rbac: failed to add parent link: %w", err)
		}
	}
	return role, nil
}

type UpdateRoleParams struct {
	Name *string
	// PermissionIDs replaces the role's permission set; nil leaves it
	// unchanged, an empty slice clears it.
	PermissionIDs []uuid.UUID
	ParentID      *uuid.UUID
	ClearParent   bool
}

func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, params UpdateRoleParams) (*Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRole
	}

	if params.Name != nil && *params.Name != role.Name {
		existing, err := s.store.GetRoleByName(ctx, role.OrganizationID, *params.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDuplicateName
		}
		role.Name = *params.Name
	}

	parentChanged := false
	if params.ClearParent {
		parentChanged = role.ParentID != nil
		role.ParentID = nil
	} else if params.ParentID != nil {
		if err := s.validateParent(ctx, id, role.OrganizationID, *params.ParentID); err != nil {
			return nil, err
		}
		parentChanged = role.ParentID == nil || *role.ParentID != *params.ParentID
		role.ParentID = params.ParentID
	}

	var perms []*Permission
	if params.PermissionIDs != nil {
		perms, err = s.lookupPermissions(ctx, params.PermissionIDs)
		if err != nil {
			return nil, err
		}
	}

	role.UpdatedAt = time.Now().Unix()
	if err := s.store.UpdateRole(ctx, role, params.PermissionIDs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if params.PermissionIDs != nil {
		if err := s.syncRolePolicies(id.String(), perms); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	if parentChanged {
		if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, id.String()); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("rbac: failed to remove parent link: %w", err)
		}
		if role.ParentID != nil {
			if _, err := s.enforcer.AddGroupingPolicy(id.String(), role.ParentID.String()); err != nil {
				s.mu.Unlock()
				return nil, fmt.Errorf("rbac: failed to add parent link: %w", err)
			}
		}
	}
	s.mu.Unlock()

	s.InvalidateRoleCache(id)
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}

	memberships, err := s.store.CountMemberships(ctx, id)
	if err != nil {
		return err
	}
	if memberships > 0 {
		return fmt.Errorf("%w: %d memberships", ErrRoleInUse, memberships)
	}
	children, err := s.store.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: %d child roles", ErrRoleInUse, children)
	}

	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	key := id.String()
	if _, err := s.enforcer.RemoveFilteredPolicy(0, key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("rbac: failed to remove policies: %w", err)
	}
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("rbac: failed to remove parent link: %w", err)
	}
	s.mu.Unlock()

	s.cache.Delete(key)
	return nil
}

// lookupPermissions resolves permission IDs, rejecting the request when any
// are unknown.
func (s *Service) lookupPermissions(ctx context.Context, ids []uuid.UUID) ([]*Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	perms, err := s.store.GetPermissions(ctx, ids)
	if err != nil {
		return nil, err
	}
	unique := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if len(perms) != len(unique) {
		return nil, ErrPermissionNotFound
	}
	return perms, nil
}

// syncRolePolicies replaces the role's policy rows in the enforcer. Caller
// holds the write lock.
func (s *Service) syncRolePolicies(roleID string, perms []*Permission) error {
	if _, err := s.enforcer.RemoveFilteredPolicy(0, roleID); err != nil {
		return fmt.Errorf("rbac: failed to remove policies: %w", err)
	}
	for _, p := range perms {
		if _, err := s.enforcer.AddPolicy(roleID, p.Resource, p.Action); err != nil {
			return fmt.Errorf("rbac: failed to add policy: %w", err)
		}
	}
	return nil
}

// validateParent checks a prospective parent link: the parent must exist, be
// visible in the role's scope, not descend from the role itself, and not push
// the chain past MaxInheritanceDepth. Cycles are impossible at read time
// because every link is vetted here before it is written.
func (s *Service) validateParent(ctx context.Context, roleID uuid.UUID, orgID *uuid.UUID, parentID uuid.UUID) error {
	if parentID == roleID {
		return ErrInheritanceCycle
	}

	hops := 0
	current := parentID
	for {
		parent, err := s.store.GetRole(ctx, current)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("%w: parent role %s", ErrRoleNotFound, current)
		}
		// Cross-organization parents are invisible to this scope.
		if hops == 0 && parent.OrganizationID != nil &&
			(orgID == nil || *parent.OrganizationID != *orgID) {
			return fmt.Errorf("%w: parent role %s", ErrRoleNotFound, current)
		}

		hops++
		if hops > MaxInheritanceDepth {
			return ErrInheritanceDepth
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == roleID {
			return ErrInheritanceCycle
		}
		current = *parent.ParentID
	}
}
