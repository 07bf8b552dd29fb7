package rbac_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/rbac"

	_ "github.com/zenithhq/zenith/internal/infra/validation"
)

func newRBACMux(t *testing.T) (*http.ServeMux, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	reflector := openapi31.NewReflector()
	mux := http.NewServeMux()
	rbac.NewRouteCheck(env.service).Register(mux, reflector)
	rbac.NewRouteRoles(env.service).Register(mux, reflector)
	rbac.NewRoutePermissions(env.service).Register(mux, reflector)
	return mux, env
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp httptools.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "response data must be an object: %s", w.Body.String())
	return data
}

func TestRouteCheck(t *testing.T) {
	mux, env := newRBACMux(t)

	read := env.seedPermission("doc", "read")
	role := env.createRole("viewer", nil, read)

	w := doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/v1/rbac/check?role_id=%s&resource=doc&action=read", role.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, responseData(t, w)["allowed"])

	w = doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/v1/rbac/check?role_id=%s&resource=doc&action=delete", role.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, responseData(t, w)["allowed"])
}

func TestRouteCheck_Validation(t *testing.T) {
	mux, _ := newRBACMux(t)

	// Missing action and a malformed role ID; validator errors render as 422.
	w := doJSON(t, mux, http.MethodGet, "/v1/rbac/check?role_id=not-a-uuid&resource=doc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouteCheckAllAny(t *testing.T) {
	mux, env := newRBACMux(t)

	read := env.seedPermission("doc", "read")
	write := env.seedPermission("doc", "write")
	role := env.createRole("editor", nil, read, write)

	body := fmt.Sprintf(`{
		"role_id": %q,
		"permissions": [
			{"resource": "doc", "action": "read"},
			{"resource": "doc", "action": "delete"}
		]
	}`, role.ID)

	w := doJSON(t, mux, http.MethodPost, "/v1/rbac/check-all", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, responseData(t, w)["allowed"])

	w = doJSON(t, mux, http.MethodPost, "/v1/rbac/check-any", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, responseData(t, w)["allowed"])

	w = doJSON(t, mux, http.MethodPost, "/v1/rbac/check-all",
		fmt.Sprintf(`{"role_id": %q, "permissions": []}`, role.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteRoles_CreateAndConflicts(t *testing.T) {
	mux, env := newRBACMux(t)

	read := env.seedPermission("doc", "read")

	body := fmt.Sprintf(`{"name": "editor", "permission_ids": [%q]}`, read)
	w := doJSON(t, mux, http.MethodPost, "/v1/rbac/roles", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := responseData(t, w)
	assert.Equal(t, "editor", data["name"])
	assert.Equal(t, false, data["is_system"])

	// Duplicate name in the same scope.
	w = doJSON(t, mux, http.MethodPost, "/v1/rbac/roles", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown permission ID.
	w = doJSON(t, mux, http.MethodPost, "/v1/rbac/roles",
		`{"name": "other", "permission_ids": ["11111111-2222-3333-4444-555555555555"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteRoles_SystemRole(t *testing.T) {
	mux, env := newRBACMux(t)

	sysID := env.seedSystemRole("admin")

	w := doJSON(t, mux, http.MethodPatch, "/v1/rbac/roles/"+sysID.String(),
		`{"name": "renamed"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, mux, http.MethodDelete, "/v1/rbac/roles/"+sysID.String(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouteRoles_DeleteReferenced(t *testing.T) {
	mux, env := newRBACMux(t)

	role := env.createRole("referenced", nil)
	env.seedMembership(role.ID)

	w := doJSON(t, mux, http.MethodDelete, "/v1/rbac/roles/"+role.ID.String(), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouteRoles_ClearParentWithNull(t *testing.T) {
	mux, env := newRBACMux(t)

	parent := env.createRole("base", nil)
	child := env.createRole("derived", &parent.ID)

	w := doJSON(t, mux, http.MethodPatch, "/v1/rbac/roles/"+child.ID.String(),
		`{"parent_id": null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, responseData(t, w)["parent_id"])
}

func TestRoutePermissions_EffectiveSet(t *testing.T) {
	mux, env := newRBACMux(t)

	read := env.seedPermission("doc", "read")
	write := env.seedPermission("doc", "write")
	parent := env.createRole("base", nil, read)
	child := env.createRole("derived", &parent.ID, write)

	w := doJSON(t, mux, http.MethodGet,
		"/v1/rbac/roles/"+child.ID.String()+"/permissions?effective=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]any{"doc:read", "doc:write"},
		responseData(t, w)["effective"],
	)

	// Without the flag only the role's own grants are listed.
	w = doJSON(t, mux, http.MethodGet,
		"/v1/rbac/roles/"+child.ID.String()+"/permissions", "")
	require.Equal(t, http.StatusOK, w.Code)
	perms := responseData(t, w)["permissions"].([]any)
	require.Len(t, perms, 1)

	w = doJSON(t, mux, http.MethodGet,
		"/v1/rbac/roles/11111111-2222-3333-4444-555555555555/permissions", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutePermissions_Catalog(t *testing.T) {
	mux, env := newRBACMux(t)

	env.seedPermission("doc", "read")
	env.seedPermission("task", "create")

	w := doJSON(t, mux, http.MethodGet, "/v1/rbac/permissions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, responseData(t, w)["permissions"], 2)
}
