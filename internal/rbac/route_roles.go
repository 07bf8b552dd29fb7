package rbac

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/infra/logger"
	oa "github.com/zenithhq/zenith/internal/openapi"
)

type CreateRoleRequest struct {
	Name           string   `json:"name"            validate:"required"            description:"Role name, unique within its scope"`
	OrganizationID *string  `json:"organization_id" validate:"omitempty,uuid"      description:"Owning organization; omit for a system-wide role"`
	ParentID       *string  `json:"parent_id"       validate:"omitempty,uuid"      description:"Role to inherit permissions from"`
	PermissionIDs  []string `json:"permission_ids"  validate:"omitempty,dive,uuid" description:"Permissions to assign"`
}

type UpdateRoleRequest struct {
	Name httptools.Patch[string] `json:"name,omitzero" description:"New role name"`
	// ParentID accepts null to detach the role from its parent.
	ParentID      httptools.Patch[string]   `json:"parent_id,omitzero"      description:"New parent role, or null to clear"`
	PermissionIDs httptools.Patch[[]string] `json:"permission_ids,omitzero" description:"Replacement permission set"`
}

type RolesResponse struct {
	Roles []*Role `json:"roles" nullable:"false" required:"true"`
}

// RouteRoles serves role management: create, list, get, update, delete.
type RouteRoles struct {
	service *Service
}

func NewRouteRoles(service *Service) *RouteRoles {
	return &RouteRoles{service: service}
}

func (route *RouteRoles) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("POST /v1/rbac/roles", route.CreateHandler())
	mux.Handle("GET /v1/rbac/roles", route.ListHandler())
	mux.Handle("GET /v1/rbac/roles/{id}", route.GetHandler())
	mux.Handle("PATCH /v1/rbac/roles/{id}", route.UpdateHandler())
	mux.Handle("DELETE /v1/rbac/roles/{id}", route.DeleteHandler())
	RegisterRolesSchema(r)
}

func RegisterRolesSchema(r *openapi31.Reflector) {
	create, _ := r.NewOperationContext(http.MethodPost, "/v1/rbac/roles")
	create.AddReqStructure(new(CreateRoleRequest))
	create.AddRespStructure(struct {
		Data Role           `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"RoleResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusCreated
		cu.Description = "Role created"
	})
	oa.AddErrorResponses(create)
	create.SetSummary("Create role")
	create.SetTags("RBAC")
	create.AddSecurity("ApiKeyAuth")
	r.AddOperation(create)

	list, _ := r.NewOperationContext(http.MethodGet, "/v1/rbac/roles")
	list.AddRespStructure(struct {
		Data RolesResponse  `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"RolesResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Roles visible to the requested scope"
	})
	oa.AddErrorResponses(list)
	list.SetSummary("List roles")
	list.SetDescription("Returns system-wide roles plus the organization's own when ?organization_id= is given.")
	list.SetTags("RBAC")
	list.AddSecurity("ApiKeyAuth")
	r.AddOperation(list)

	get, _ := r.NewOperationContext(http.MethodGet, "/v1/rbac/roles/{id}")
	get.AddRespStructure(struct {
		Data Role           `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"RoleResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Role"
	})
	oa.AddErrorResponses(get)
	get.SetSummary("Get role")
	get.SetTags("RBAC")
	get.AddSecurity("ApiKeyAuth")
	r.AddOperation(get)

	update, _ := r.NewOperationContext(http.MethodPatch, "/v1/rbac/roles/{id}")
	update.AddReqStructure(new(UpdateRoleRequest))
	update.AddRespStructure(struct {
		Data Role           `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"RoleResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Updated role"
	})
	oa.AddErrorResponses(update)
	update.SetSummary("Update role")
	update.SetDescription("System roles are immutable and reject updates.")
	update.SetTags("RBAC")
	update.AddSecurity("ApiKeyAuth")
	r.AddOperation(update)

	del, _ := r.NewOperationContext(http.MethodDelete, "/v1/rbac/roles/{id}")
	del.AddRespStructure(nil, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusNoContent
		cu.Description = "Role deleted"
	})
	oa.AddErrorResponses(del)
	del.SetSummary("Delete role")
	del.SetDescription("Fails while memberships or child roles still reference the role.")
	del.SetTags("RBAC")
	del.AddSecurity("ApiKeyAuth")
	r.AddOperation(del)
}

func (route *RouteRoles) CreateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}
		if req.Name == "" {
			httptools.BadRequest(w, r, "name is required")
			return
		}

		params := CreateRoleParams{Name: req.Name}
		if req.OrganizationID != nil {
			id, err := uuid.Parse(*req.OrganizationID)
			if err != nil {
				httptools.BadRequest(w, r, "invalid organization id")
				return
			}
			params.OrganizationID = &id
		}
		if req.ParentID != nil {
			id, err := uuid.Parse(*req.ParentID)
			if err != nil {
				httptools.BadRequest(w, r, "invalid parent id")
				return
			}
			params.ParentID = &id
		}
		ids, ok := parsePermissionIDs(w, r, req.PermissionIDs)
		if !ok {
			return
		}
		params.PermissionIDs = ids

		role, err := route.service.CreateRole(r.Context(), params)
		if err != nil {
			writeRoleError(w, r, err, "failed to create role")
			return
		}
		httptools.JSON(w, r, http.StatusCreated, role)
	})
}

func (route *RouteRoles) ListHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var orgID *uuid.UUID
		if raw := r.URL.Query().Get("organization_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httptools.BadRequest(w, r, "invalid organization id")
				return
			}
			orgID = &id
		}

		roles, err := route.service.ListRoles(r.Context(), orgID)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to list roles", "error", err)
			httptools.InternalError(w, r)
			return
		}
		if roles == nil {
			roles = []*Role{}
		}
		httptools.JSON(w, r, http.StatusOK, RolesResponse{Roles: roles})
	})
}

func (route *RouteRoles) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := rolePathID(w, r)
		if !ok {
			return
		}

		role, err := route.service.GetRole(r.Context(), id)
		if err != nil {
			writeRoleError(w, r, err, "failed to load role")
			return
		}
		httptools.JSON(w, r, http.StatusOK, role)
	})
}

func (route *RouteRoles) UpdateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := rolePathID(w, r)
		if !ok {
			return
		}

		var req UpdateRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}

		var params UpdateRoleParams
		if v, ok := req.Name.Value(); ok {
			if v == "" {
				httptools.BadRequest(w, r, "name cannot be empty")
				return
			}
			params.Name = &v
		} else if req.Name.IsSet() {
			httptools.BadRequest(w, r, "name cannot be null")
			return
		}
		if v, ok := req.ParentID.Value(); ok {
			parentID, err := uuid.Parse(v)
			if err != nil {
				httptools.BadRequest(w, r, "invalid parent id")
				return
			}
			params.ParentID = &parentID
		} else if req.ParentID.IsSet() {
			params.ClearParent = true
		}
		if v, ok := req.PermissionIDs.Value(); ok {
			ids, ok := parsePermissionIDs(w, r, v)
			if !ok {
				return
			}
			if ids == nil {
				ids = []uuid.UUID{}
			}
			params.PermissionIDs = ids
		} else if req.PermissionIDs.IsSet() {
			httptools.BadRequest(w, r, "permission_ids cannot be null, use an empty array to clear")
			return
		}

		role, err := route.service.UpdateRole(r.Context(), id, params)
		if err != nil {
			writeRoleError(w, r, err, "failed to update role")
			return
		}
		httptools.JSON(w, r, http.StatusOK, role)
	})
}

func (route *RouteRoles) DeleteHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := rolePathID(w, r)
		if !ok {
			return
		}

		if err := route.service.DeleteRole(r.Context(), id); err != nil {
			writeRoleError(w, r, err, "failed to delete role")
			return
		}
		httptools.WriteStatus(w, http.StatusNoContent)
	})
}

func rolePathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httptools.BadRequest(w, r, "invalid role id")
		return uuid.Nil, false
	}
	return id, true
}

func parsePermissionIDs(w http.ResponseWriter, r *http.Request, raw []string) ([]uuid.UUID, bool) {
	if raw == nil {
		return nil, true
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			httptools.BadRequest(w, r, "invalid permission id: "+s)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func writeRoleError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		httptools.NotFound(w, r, "role not found")
	case errors.Is(err, ErrPermissionNotFound):
		httptools.BadRequest(w, r, "unknown permission id")
	case errors.Is(err, ErrInvalidInput):
		httptools.BadRequest(w, r, err.Error())
	case errors.Is(err, ErrSystemRole):
		httptools.Forbidden(w, r, "system roles cannot be modified or deleted")
	case errors.Is(err, ErrRoleInUse):
		httptools.Conflict(w, r, "role is still referenced")
	case errors.Is(err, ErrDuplicateName):
		httptools.Conflict(w, r, "a role with this name already exists in this scope")
	case errors.Is(err, ErrInheritanceCycle):
		httptools.Conflict(w, r, "parent assignment would create a cycle")
	case errors.Is(err, ErrInheritanceDepth):
		httptools.Conflict(w, r, "parent chain would exceed the maximum depth")
	default:
		logger.FromContext(r.Context()).Error(msg, "error", err)
		httptools.InternalError(w, r)
	}
}
