package webhooks

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

type UpdateWebhookRequest struct {
	URL      httptools.Patch[string]   `json:"url,omitzero"       description:"New delivery endpoint"`
	Events   httptools.Patch[[]string] `json:"events,omitzero"    description:"Replacement event name set"`
	IsActive httptools.Patch[bool]     `json:"is_active,omitzero" description:"Enable or disable deliveries"`
}

// RouteSubscription serves a single subscription: get, update, delete, test.
type RouteSubscription struct {
	service *Service
}

func NewRouteSubscription(service *Service) *RouteSubscription {
	return &RouteSubscription{service: service}
}

func (route *RouteSubscription) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("GET /v1/webhooks/{id}", route.GetHandler())
	mux.Handle("PATCH /v1/webhooks/{id}", route.UpdateHandler())
	mux.Handle("DELETE /v1/webhooks/{id}", route.DeleteHandler())
	mux.Handle("POST /v1/webhooks/{id}/test", route.TestHandler())
	RegisterSubscriptionSchema(r)
}

func RegisterSubscriptionSchema(r *openapi31.Reflector) {
	get, _ := r.NewOperationContext(http.MethodGet, "/v1/webhooks/{id}")
	get.AddRespStructure(struct {
		Data Subscription   `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"SubscriptionResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Webhook subscription"
	})
	oa.AddErrorResponses(get)
	get.SetSummary("Get webhook subscription")
	get.SetTags("Webhooks")
	get.AddSecurity("ApiKeyAuth")
	r.AddOperation(get)

	update, _ := r.NewOperationContext(http.MethodPatch, "/v1/webhooks/{id}")
	update.AddReqStructure(new(UpdateWebhookRequest))
	update.AddRespStructure(struct {
		Data Subscription   `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"SubscriptionResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Updated subscription"
	})
	oa.AddErrorResponses(update)
	update.SetSummary("Update webhook subscription")
	update.SetTags("Webhooks")
	update.AddSecurity("ApiKeyAuth")
	r.AddOperation(update)

	del, _ := r.NewOperationContext(http.MethodDelete, "/v1/webhooks/{id}")
	del.AddRespStructure(nil, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusNoContent
		cu.Description = "Subscription deleted"
	})
	oa.AddErrorResponses(del)
	del.SetSummary("Delete webhook subscription")
	del.SetTags("Webhooks")
	del.AddSecurity("ApiKeyAuth")
	r.AddOperation(del)

	test, _ := r.NewOperationContext(http.MethodPost, "/v1/webhooks/{id}/test")
	test.AddRespStructure(nil, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusAccepted
		cu.Description = "Test delivery queued"
	})
	oa.AddErrorResponses(test)
	test.SetSummary("Send test event")
	test.SetDescription("Queues a synthetic webhook.test delivery to the subscription's endpoint.")
	test.SetTags("Webhooks")
	test.AddSecurity("ApiKeyAuth")
	r.AddOperation(test)
}

func (route *RouteSubscription) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		sub, err := route.service.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err, "failed to load webhook")
			return
		}
		httptools.JSON(w, r, http.StatusOK, ToSubscription(sub))
	})
}

func (route *RouteSubscription) UpdateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req UpdateWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}

		var params UpdateParams
		if v, ok := req.URL.Value(); ok {
			params.URL = &v
		} else if req.URL.IsSet() {
			httptools.BadRequest(w, r, "url cannot be null")
			return
		}
		if v, ok := req.Events.Value(); ok {
			params.Events = v
		} else if req.Events.IsSet() {
			httptools.BadRequest(w, r, "events cannot be null")
			return
		}
		if v, ok := req.IsActive.Value(); ok {
			params.IsActive = &v
		} else if req.IsActive.IsSet() {
			httptools.BadRequest(w, r, "is_active cannot be null")
			return
		}

		sub, err := route.service.Update(r.Context(), id, params)
		if err != nil {
			writeServiceError(w, r, err, "failed to update webhook")
			return
		}
		httptools.JSON(w, r, http.StatusOK, ToSubscription(sub))
	})
}

func (route *RouteSubscription) DeleteHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := route.service.Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, err, "failed to delete webhook")
			return
		}
		httptools.WriteStatus(w, http.StatusNoContent)
	})
}

func (route *RouteSubscription) TestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := route.service.Test(r.Context(), id); err != nil {
			writeServiceError(w, r, err, "failed to queue test delivery")
			return
		}
		httptools.WriteStatus(w, http.StatusAccepted)
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httptools.BadRequest(w, r, "invalid webhook id")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httptools.NotFound(w, r, "webhook subscription not found")
	case errors.Is(err, ErrInvalidInput):
		httptools.BadRequest(w, r, err.Error())
	default:
		logger.FromContext(r.Context()).Error(msg, "error", err)
		httptools.InternalError(w, r)
	}
}
