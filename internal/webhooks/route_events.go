package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	"github.com/zenithhq/zenith/internal/infra/logger"
	oa "github.com/zenithhq/zenith/internal/openapi"
)

type TriggerEventRequest struct {
	ProjectID string          `json:"project_id" validate:"required,uuid" description:"Project whose subscriptions receive the event"`
	Event     string          `json:"event"      validate:"required"      description:"Event name, e.g. issue.created"`
	Data      json.RawMessage `json:"data"                                description:"Event payload delivered in the envelope's data field"`
}

type TriggerEventResponse struct {
	Queued int `json:"queued" description:"Number of deliveries queued"`
}

// RouteEvents is the internal producer endpoint: business services post
// domain events here to fan them out to subscriptions.
type RouteEvents struct {
	service *Service
}

func NewRouteEvents(service *Service) *RouteEvents {
	return &RouteEvents{service: service}
}

func (route *RouteEvents) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("POST /v1/events", route.Handler())
	RegisterEventsSchema(r)
}

func RegisterEventsSchema(r *openapi31.Reflector) {
	op, _ := r.NewOperationContext(http.MethodPost, "/v1/events")
	op.AddReqStructure(new(TriggerEventRequest))
	op.AddRespStructure(struct {
		Data TriggerEventResponse `json:"data"`
		Meta httptools.Meta       `json:"meta"`
		_    struct{}             `title:"TriggerEventResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusAccepted
		cu.Description = "Deliveries queued for matching subscriptions"
	})
	oa.AddErrorResponses(op)
	op.SetSummary("Trigger domain event")
	op.SetTags("Events")
	op.AddSecurity("ApiKeyAuth")
	r.AddOperation(op)
}

func (route *RouteEvents) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req TriggerEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}
		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			httptools.BadRequest(w, r, "invalid project id")
			return
		}
		if req.Event == "" {
			httptools.BadRequest(w, r, "event is required")
			return
		}
		if req.Data == nil {
			req.Data = json.RawMessage(`{}`)
		}

		queued, err := route.service.Trigger(r.Context(), projectID, req.Event, req.Data)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to trigger event", "error", err)
			httptools.InternalError(w, r)
			return
		}

		httptools.JSON(w, r, http.StatusAccepted, TriggerEventResponse{Queued: queued})
	})
}
