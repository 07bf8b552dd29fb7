package rbac

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/iamolegga/valmid"
	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/infra/logger"
	oa "github.com/zenithhq/zenith/internal/openapi"
)

type CheckRequest struct {
	RoleID   string `in:"query=role_id"  query:"role_id"  validate:"required,uuid" description:"Role ID to check"`
	Resource string `in:"query=resource" query:"resource" validate:"required"      description:"Resource part of the permission, e.g. task"`
	Action   string `in:"query=action"   query:"action"   validate:"required"      description:"Action part of the permission, e.g. delete"`
}

type CheckManyRequest struct {
	RoleID      string          `json:"role_id"     validate:"required,uuid"        description:"Role ID to check"`
	Permissions []PermissionRef `json:"permissions" validate:"required,min=1,dive"  description:"Permission pairs to check"`
}

type CheckResponse struct {
	Allowed bool   `json:"allowed" description:"Whether the role holds the requested permission(s)"`
	RoleID  string `json:"role_id" description:"The checked role ID"`
}

// RouteCheck serves the permission check endpoints. Checks resolve against
// the role's full permission set, inherited grants included; an unknown role
// simply holds nothing.
type RouteCheck struct {
	service *Service
}

func NewRouteCheck(service *Service) *RouteCheck {
	return &RouteCheck{service: service}
}

func (route *RouteCheck) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("GET /v1/rbac/check",
		valmid.Middleware[CheckRequest]()(route.CheckHandler()),
	)
	mux.Handle("POST /v1/rbac/check-all", route.CheckManyHandler(true))
	mux.Handle("POST /v1/rbac/check-any", route.CheckManyHandler(false))
	RegisterCheckSchema(r)
}

func RegisterCheckSchema(r *openapi31.Reflector) {
	check, _ := r.NewOperationContext(http.MethodGet, "/v1/rbac/check")
	check.AddReqStructure(new(CheckRequest))
	check.AddRespStructure(struct {
		Data CheckResponse  `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"CheckResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Permission check result"
	})
	oa.AddErrorResponses(check)
	check.SetSummary("Check single permission")
	check.SetTags("RBAC")
	check.AddSecurity("ApiKeyAuth")
	r.AddOperation(check)

	for _, ep := range []struct {
		path, summary, desc string
	}{
		{"/v1/rbac/check-all", "Check all permissions", "Allowed only when the role holds every listed permission."},
		{"/v1/rbac/check-any", "Check any permission", "Allowed when the role holds at least one listed permission."},
	} {
		op, _ := r.NewOperationContext(http.MethodPost, ep.path)
		op.AddReqStructure(new(CheckManyRequest))
		op.AddRespStructure(struct {
			Data CheckResponse  `json:"data"`
			Meta httptools.Meta `json:"meta"`
			_    struct{}       `title:"CheckResponse"`
		}{}, func(cu *openapi.ContentUnit) {
			cu.HTTPStatus = http.StatusOK
			cu.Description = "Permission check result"
		})
		oa.AddErrorResponses(op)
		op.SetSummary(ep.summary)
		op.SetDescription(ep.desc)
		op.SetTags("RBAC")
		op.AddSecurity("ApiKeyAuth")
		r.AddOperation(op)
	}
}

func (route *RouteCheck) CheckHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := valmid.Get[CheckRequest](r)
		roleID := uuid.MustParse(input.RoleID)

		allowed, err := route.service.HasPermission(r.Context(), roleID, input.Resource, input.Action)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to check permission", "error", err)
			httptools.InternalError(w, r)
			return
		}
		httptools.JSON(w, r, http.StatusOK, CheckResponse{Allowed: allowed, RoleID: input.RoleID})
	})
}

func (route *RouteCheck) CheckManyHandler(requireAll bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CheckManyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}
		roleID, err := uuid.Parse(req.RoleID)
		if err != nil {
			httptools.BadRequest(w, r, "invalid role id")
			return
		}
		if len(req.Permissions) == 0 {
			httptools.BadRequest(w, r, "permissions must not be empty")
			return
		}
		for _, ref := range req.Permissions {
			if ref.Resource == "" || ref.Action == "" {
				httptools.BadRequest(w, r, "each permission needs resource and action")
				return
			}
		}

		var allowed bool
		if requireAll {
			allowed, err = route.service.HasAllPermissions(r.Context(), roleID, req.Permissions)
		} else {
			allowed, err = route.service.HasAnyPermission(r.Context(), roleID, req.Permissions)
		}
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to check permissions", "error", err)
			httptools.InternalError(w, r)
			return
		}
		httptools.JSON(w, r, http.StatusOK, CheckResponse{Allowed: allowed, RoleID: req.RoleID})
	})
}
