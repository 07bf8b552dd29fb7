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

type CreateWebhookRequest struct {
	URL    string   `json:"url"    validate:"required,url" description:"HTTPS endpoint to deliver events to"`
	Events []string `json:"events" validate:"required,min=1,dive,required" description:"Event names to subscribe to"`
}

type SubscriptionsResponse struct {
	Webhooks []Subscription `json:"webhooks" nullable:"false" required:"true"`
}

// RouteSubscriptions serves the per-project collection: create and list.
type RouteSubscriptions struct {
	service *Service
}

func NewRouteSubscriptions(service *Service) *RouteSubscriptions {
	return &RouteSubscriptions{service: service}
}

func (route *RouteSubscriptions) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("POST /v1/projects/{projectID}/webhooks", route.CreateHandler())
	mux.Handle("GET /v1/projects/{projectID}/webhooks", route.ListHandler())
	RegisterSubscriptionsSchema(r)
}

func RegisterSubscriptionsSchema(r *openapi31.Reflector) {
	create, _ := r.NewOperationContext(http.MethodPost, "/v1/projects/{projectID}/webhooks")
	create.AddReqStructure(new(CreateWebhookRequest))
	create.AddRespStructure(struct {
		Data SubscriptionWithSecret `json:"data"`
		Meta httptools.Meta         `json:"meta"`
		_    struct{}               `title:"CreateWebhookResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusCreated
		cu.Description = "Subscription created; the secret is only returned here"
	})
	oa.AddErrorResponses(create)
	create.SetSummary("Create webhook subscription")
	create.SetTags("Webhooks")
	create.AddSecurity("ApiKeyAuth")
	r.AddOperation(create)

	list, _ := r.NewOperationContext(http.MethodGet, "/v1/projects/{projectID}/webhooks")
	list.AddRespStructure(struct {
		Data SubscriptionsResponse `json:"data"`
		Meta httptools.Meta        `json:"meta"`
		_    struct{}              `title:"SubscriptionsResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Project webhook subscriptions"
	})
	oa.AddErrorResponses(list)
	list.SetSummary("List webhook subscriptions")
	list.SetTags("Webhooks")
	list.AddSecurity("ApiKeyAuth")
	r.AddOperation(list)
}

func (route *RouteSubscriptions) CreateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(r.PathValue("projectID"))
		if err != nil {
			httptools.BadRequest(w, r, "invalid project id")
			return
		}

		var req CreateWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httptools.BadRequest(w, r, "invalid JSON body")
			return
		}

		sub, err := route.service.Create(r.Context(), projectID, CreateParams{
			URL:    req.URL,
			Events: req.Events,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				httptools.BadRequest(w, r, err.Error())
				return
			}
			logger.FromContext(r.Context()).Error("failed to create webhook", "error", err)
			httptools.InternalError(w, r)
			return
		}

		httptools.JSON(w, r, http.StatusCreated, SubscriptionWithSecret{
			Subscription: ToSubscription(sub),
			Secret:       sub.Secret,
		})
	})
}

func (route *RouteSubscriptions) ListHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(r.PathValue("projectID"))
		if err != nil {
			httptools.BadRequest(w, r, "invalid project id")
			return
		}

		subs, err := route.service.List(r.Context(), projectID)
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to list webhooks", "error", err)
			httptools.InternalError(w, r)
			return
		}

		dtos := make([]Subscription, len(subs))
		for i, sub := range subs {
			dtos[i] = ToSubscription(sub)
		}
		httptools.JSON(w, r, http.StatusOK, SubscriptionsResponse{Webhooks: dtos})
	})
}
