package webhooks_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/webhooks"

	_ "github.com/zenithhq/zenith/internal/infra/validation"
)

func newWebhooksMux(t *testing.T) *http.ServeMux {
	t.Helper()

	service, _, _ := newTestService(t)
	reflector := openapi31.NewReflector()
	mux := http.NewServeMux()
	webhooks.NewRouteSubscriptions(service).Register(mux, reflector)
	webhooks.NewRouteSubscription(service).Register(mux, reflector)
	webhooks.NewRouteLogs(service).Register(mux, reflector)
	webhooks.NewRouteEvents(service).Register(mux, reflector)
	return mux
}

func serve(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
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

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp httptools.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "response data must be an object: %s", w.Body.String())
	return data
}

func TestRouteSubscriptions_CreateReturnsSecretOnce(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := decodeData(t, w)
	secret, _ := data["secret"].(string)
	assert.Len(t, secret, 64)
	id := data["id"].(string)

	// Subsequent reads never expose the secret.
	w = serve(t, mux, http.MethodGet, "/v1/webhooks/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	_, present := decodeData(t, w)["secret"]
	assert.False(t, present)
}

func TestRouteSubscriptions_CreateValidation(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	tests := []struct {
		name string
		body string
	}{
		{"missing_url", `{"events": ["task.created"]}`},
		{"relative_url", `{"url": "/hooks", "events": ["task.created"]}`},
		{"no_events", `{"url": "https://receiver.example.com/hooks", "events": []}`},
		{"bad_json", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, mux, http.MethodPost,
				"/v1/projects/"+projectID.String()+"/webhooks", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := serve(t, mux, http.MethodPost, "/v1/projects/not-a-uuid/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteSubscription_Update(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = serve(t, mux, http.MethodPatch, "/v1/webhooks/"+id, `{"is_active": false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decodeData(t, w)["is_active"])

	// url is not nullable.
	w = serve(t, mux, http.MethodPatch, "/v1/webhooks/"+id, `{"url": null}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, mux, http.MethodPatch, "/v1/webhooks/"+uuid.NewString(), `{"is_active": true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteSubscription_Delete(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = serve(t, mux, http.MethodDelete, "/v1/webhooks/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, mux, http.MethodDelete, "/v1/webhooks/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteSubscription_Test(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = serve(t, mux, http.MethodPost, "/v1/webhooks/"+id+"/test", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = serve(t, mux, http.MethodPost, "/v1/webhooks/"+uuid.NewString()+"/test", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteLogs(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = serve(t, mux, http.MethodGet, "/v1/webhooks/"+id+"/logs", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decodeData(t, w)["logs"])

	// limit above the allowed range fails validation.
	w = serve(t, mux, http.MethodGet, "/v1/webhooks/"+id+"/logs?limit=500", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(t, mux, http.MethodGet, "/v1/webhooks/"+uuid.NewString()+"/logs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteEvents_Trigger(t *testing.T) {
	mux := newWebhooksMux(t)
	projectID := uuid.New()

	w := serve(t, mux, http.MethodPost, "/v1/projects/"+projectID.String()+"/webhooks",
		`{"url": "https://receiver.example.com/hooks", "events": ["task.created"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := fmt.Sprintf(`{"project_id": %q, "event": "task.created", "data": {"task_id": 7}}`, projectID)
	w = serve(t, mux, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeData(t, w)["queued"])

	// No subscriptions listen for this event.
	body = fmt.Sprintf(`{"project_id": %q, "event": "task.archived"}`, projectID)
	w = serve(t, mux, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(0), decodeData(t, w)["queued"])

	w = serve(t, mux, http.MethodPost, "/v1/events", `{"event": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
