package webhooks

import (
	"net/http"

	"github.com/iamolegga/valmid"
	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/zenithhq/zenith/internal/httptools"
	oa "github.com/zenithhq/zenith/internal/openapi"
)

const defaultLogsLimit = 50

type LogsRequest struct {
	Limit int `in:"query=limit" query:"limit" validate:"omitempty,min=1,max=200" description:"Maximum number of log rows to return (default 50)"`
}

type LogsResponse struct {
	Logs []DeliveryLog `json:"logs" nullable:"false" required:"true"`
}

type RouteLogs struct {
	service *Service
}

func NewRouteLogs(service *Service) *RouteLogs {
	return &RouteLogs{service: service}
}

func (route *RouteLogs) Register(mux *http.ServeMux, r *openapi31.Reflector) {
	mux.Handle("GET /v1/webhooks/{id}/logs",
		valmid.Middleware[LogsRequest]()(route.Handler()),
	)
	RegisterLogsSchema(r)
}

func RegisterLogsSchema(r *openapi31.Reflector) {
	op, _ := r.NewOperationContext(http.MethodGet, "/v1/webhooks/{id}/logs")
	op.AddReqStructure(new(LogsRequest))
	op.AddRespStructure(struct {
		Data LogsResponse   `json:"data"`
		Meta httptools.Meta `json:"meta"`
		_    struct{}       `title:"LogsResponse"`
	}{}, func(cu *openapi.ContentUnit) {
		cu.HTTPStatus = http.StatusOK
		cu.Description = "Delivery log rows, most recent first"
	})
	oa.AddErrorResponses(op)
	op.SetSummary("List delivery logs")
	op.SetDescription("Returns the append-only delivery audit trail for one subscription.")
	op.SetTags("Webhooks")
	op.AddSecurity("ApiKeyAuth")
	r.AddOperation(op)
}

func (route *RouteLogs) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		input := valmid.Get[LogsRequest](r)
		limit := input.Limit
		if limit == 0 {
			limit = defaultLogsLimit
		}

		logs, err := route.service.Logs(r.Context(), id, limit)
		if err != nil {
			writeServiceError(w, r, err, "failed to list delivery logs")
			return
		}

		dtos := make([]DeliveryLog, len(logs))
		for i, l := range logs {
			dtos[i] = ToDeliveryLog(l)
		}
		httptools.JSON(w, r, http.StatusOK, LogsResponse{Logs: dtos})
	})
}
