package rbac

import (
	"net/http"

	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/infra/logger"
	oa "github.com/zenithhq/zenith/internal/openapi"
)

type PermissionsResponse struct {
	Permissions []*Permission `json:"permissions" nullable:"false" required:"true"`
}

type RolePermissionsResponse struct {
	// Permissions is set when listing the role's own grants.
	Permissions []*Permission `json:"permissions,omitempty" description:"Directly assigned permissions"`
	// Effective is set with ?effective=true: the resolved set in
	// resource:action form, inherited grants included.
	Effective []string `json:"effective,omitempty" description:"Resolved permission keys, inherited included"`
}

// RoutePermissions serves the permission catalog and per-role permission
// listings.
type RoutePermissions struct {
	service *Service
}

func NewRoutePermissions(service *Service) *RoutePermissions {
	return &RoutePermissions{service: service}
}

func (route *RoutePermissions) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("GET /v1/rbac/permissions", route.ListHandler())
	mux.Handle("GET /v1/rbac/roles/{id}/permissions", route.RolePermissionsHandler())
	RegisterPermissionsSchema(r)
}

func RegisterPermissionsSchema(r *openapi31.Reflector) {
	list, _ := r.NewOperationContext(http.MethodGet, "/v1/rbac/permissions")
	list.AddRespStructure(struct {
		Data PermissionsResponse `json:"data"`
		Meta httptools.Meta      `json:"meta"`
		_    struct{}            `title:"PermissionsResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Permission catalog"
	})
	oa.AddErrorResponses(list)
	list.SetSummary("List permissions")
	list.SetTags("RBAC")
	list.AddSecurity("ApiKeyAuth")
	r.AddOperation(list)

	rolePerms, _ := r.NewOperationContext(http.MethodGet, "/v1/rbac/roles/{id}/permissions")
	rolePerms.AddRespStructure(struct {
		Data RolePermissionsResponse `json:"data"`
		Meta httptools.Meta          `json:"meta"`
		_    struct{}                `title:"RolePermissionsResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "The role's permissions"
	})
	oa.AddErrorResponses(rolePerms)
	rolePerms.SetSummary("List role permissions")
	rolePerms.SetDescription("Returns the role's own grants, or the resolved set including inherited grants with ?effective=true.")
	rolePerms.SetTags("RBAC")
	rolePerms.AddSecurity("ApiKeyAuth")
	r.AddOperation(rolePerms)
}

func (route *RoutePermissions) ListHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perms, err := route.service.ListPermissions(r.Context())
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to list permissions", "error", err)
			httptools.InternalError(w, r)
			return
		}
		if perms == nil {
			perms = []*Permission{}
		}
		httptools.JSON(w, r, http.StatusOK, PermissionsResponse{Permissions: perms})
	})
}

func (route *RoutePermissions) RolePermissionsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := rolePathID(w, r)
		if !ok {
			return
		}

		if r.URL.Query().Get("effective") == "true" {
			keys, err := route.service.GetEffectivePermissions(r.Context(), id)
			if err != nil {
				writeRoleError(w, r, err, "failed to resolve role permissions")
				return
			}
			if keys == nil {
				keys = []string{}
			}
			httptools.JSON(w, r, http.StatusOK, RolePermissionsResponse{Effective: keys})
			return
		}

		perms, err := route.service.GetDirectPermissions(r.Context(), id)
		if err != nil {
			writeRoleError(w, r, err, "failed to list role permissions")
			return
		}
		if perms == nil {
			perms = []*Permission{}
		}
		httptools.JSON(w, r, http.StatusOK, RolePermissionsResponse{Permissions: perms})
	})
}
