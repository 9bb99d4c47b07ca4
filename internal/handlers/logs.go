package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trailworks/trail/internal/exports"
	"github.com/trailworks/trail/internal/middleware"
	"github.com/trailworks/trail/internal/models"
	"github.com/trailworks/trail/internal/services"
	appErrors "github.com/trailworks/trail/pkg/errors"
	"github.com/trailworks/trail/pkg/response"
)

// defaultExportTTL is how long a generated export file stays downloadable.
const defaultExportTTL = time.Hour

// LogHandler exposes the audit log HTTP surface.
type LogHandler struct {
	svc       *services.LogService
	sink      exports.Sink
	exportTTL time.Duration
	now       func() time.Time
}

// Option customises the LogHandler.
type Option func(*LogHandler)

// WithExportTTL aligns the advertised export expiry with the sink's retention window.
func WithExportTTL(ttl time.Duration) Option {
	return func(h *LogHandler) {
		if ttl > 0 {
			h.exportTTL = ttl
		}
	}
}

// WithClock injects the time source, primarily for testing.
func WithClock(now func() time.Time) Option {
	return func(h *LogHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewLogHandler wires the handler with its service and export sink.
func NewLogHandler(svc *services.LogService, sink exports.Sink, opts ...Option) (*LogHandler, error) {
	if svc == nil {
		return nil, errors.New("log handler: service is required")
	}
	if sink == nil {
		return nil, errors.New("log handler: export sink is required")
	}

	handler := &LogHandler{
		svc:       svc,
		sink:      sink,
		exportTTL: defaultExportTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler, nil
}

type listLogsQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`

	Module       string `form:"module" json:"module" validate:"omitempty,max=100"`
	Action       string `form:"action" json:"action" validate:"omitempty,max=255"`
	Severity     string `form:"severity" json:"severity" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR CRITICAL"`
	MinSeverity  string `form:"min_severity" json:"min_severity" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR CRITICAL"`
	ActorID      string `form:"actor_id" json:"actor_id" validate:"omitempty,uuid"`
	ClientID     string `form:"client_id" json:"client_id" validate:"omitempty,uuid"`
	ResourceType string `form:"resource_type" json:"resource_type" validate:"omitempty,max=100"`
	ResourceID   string `form:"resource_id" json:"resource_id" validate:"omitempty,uuid"`
	StartDate    string `form:"start_date" json:"start_date"`
	EndDate      string `form:"end_date" json:"end_date"`
	Search       string `form:"search" json:"search" validate:"omitempty,max=255"`
}

// toFilter converts the request fields into a service filter, rejecting
// malformed timestamps before anything reaches the query service.
func (q *listLogsQuery) toFilter() (services.LogFilter, error) {
	filter := services.LogFilter{
		Module:       q.Module,
		Action:       q.Action,
		Severity:     models.Severity(q.Severity),
		MinSeverity:  models.Severity(q.MinSeverity),
		ActorID:      q.ActorID,
		ClientID:     q.ClientID,
		ResourceType: q.ResourceType,
		ResourceID:   q.ResourceID,
		Search:       q.Search,
	}

	if q.StartDate != "" {
		t, err := time.Parse(time.RFC3339, q.StartDate)
		if err != nil {
			return filter, appErrors.NewBadRequest("start_date must be an RFC 3339 timestamp")
		}
		filter.StartDate = &t
	}
	if q.EndDate != "" {
		t, err := time.Parse(time.RFC3339, q.EndDate)
		if err != nil {
			return filter, appErrors.NewBadRequest("end_date must be an RFC 3339 timestamp")
		}
		filter.EndDate = &t
	}

	return filter, nil
}

// GET /api/v1/logs
func (h *LogHandler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query listLogsQuery
	if !bindQueryAndValidate(c, &query) {
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.svc.List(requestContext(c), tenant, filter, query.Page, query.PageSize)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		Pages:    page.Pages,
	})
}

// GET /api/v1/logs/stats
func (h *LogHandler) Stats(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.svc.Stats(requestContext(c), tenant)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// GET /api/v1/logs/:id
func (h *LogHandler) Get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entry, err := h.svc.Get(requestContext(c), c.Param("id"), tenant)
	if err != nil {
		if errors.Is(err, services.ErrLogEntryNotFound) {
			response.Error(c, appErrors.NewNotFound("Log entry not found"))
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, entry)
}

type exportLogsRequest struct {
	Filter      *listLogsQuery `json:"filter"`
	Format      string         `json:"format" validate:"omitempty,oneof=csv json"`
	IncludeData bool           `json:"include_data"`
}

type exportLogsResponse struct {
	DownloadURL string    `json:"download_url"`
	Filename    string    `json:"filename"`
	RecordCount int       `json:"record_count"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// POST /api/v1/logs/export
func (h *LogHandler) Export(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req exportLogsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	filter := services.LogFilter{}
	if req.Filter != nil {
		if !validateStruct(c, req.Filter) {
			return
		}
		converted, err := req.Filter.toFilter()
		if err != nil {
			response.Error(c, err)
			return
		}
		filter = converted
	}

	format := services.ExportFormat(req.Format)
	if format == "" {
		format = services.ExportFormatCSV
	}

	result, err := h.svc.Export(requestContext(c), tenant, filter, format, req.IncludeData)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	downloadURL, err := h.sink.Save(requestContext(c), result.Filename, result.Content)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, exportLogsResponse{
		DownloadURL: downloadURL,
		Filename:    result.Filename,
		RecordCount: result.RecordCount,
		ExpiresAt:   h.now().UTC().Add(h.exportTTL),
	})
}

// GET /api/v1/logs/exports/:filename
func (h *LogHandler) Download(c *gin.Context) {
	filename := c.Param("filename")

	content, err := h.sink.Open(requestContext(c), filename)
	if err != nil {
		if errors.Is(err, exports.ErrExportNotFound) {
			response.Error(c, appErrors.NewNotFound("Export file not found or expired"))
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	contentType := "text/csv"
	if strings.HasSuffix(filename, ".json") {
		contentType = "application/json"
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, content)
}

type createLogRequest struct {
	TenantID string  `json:"tenant_id" validate:"required,uuid"`
	ClientID *string `json:"client_id" validate:"omitempty,uuid"`

	ActorID    *string `json:"actor_id" validate:"omitempty,uuid"`
	ActorEmail *string `json:"actor_email" validate:"omitempty,max=255"`
	ActorName  *string `json:"actor_name" validate:"omitempty,max=255"`

	Module   string `json:"module" validate:"required,max=100"`
	Action   string `json:"action" validate:"required,max=255"`
	Severity string `json:"severity" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR CRITICAL"`

	ResourceType *string `json:"resource_type" validate:"omitempty,max=100"`
	ResourceID   *string `json:"resource_id" validate:"omitempty,uuid"`

	Data map[string]any `json:"data"`

	IPAddress *string `json:"ip_address" validate:"omitempty,max=45"`
	UserAgent *string `json:"user_agent"`
	RequestID *string `json:"request_id" validate:"omitempty,uuid"`
}

// toInput fills request metadata from the HTTP request when the caller did
// not provide it.
func (r *createLogRequest) toInput(c *gin.Context) services.LogInput {
	input := services.LogInput{
		TenantID:     r.TenantID,
		ClientID:     r.ClientID,
		ActorID:      r.ActorID,
		ActorEmail:   r.ActorEmail,
		ActorName:    r.ActorName,
		Module:       r.Module,
		Action:       r.Action,
		Severity:     models.Severity(r.Severity),
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Data:         r.Data,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		RequestID:    r.RequestID,
	}

	if input.IPAddress == nil {
		if ip := c.ClientIP(); ip != "" {
			input.IPAddress = &ip
		}
	}
	if input.UserAgent == nil {
		if ua := c.Request.UserAgent(); ua != "" {
			input.UserAgent = &ua
		}
	}
	if input.RequestID == nil {
		if id := c.GetString(middleware.CtxRequestIDKey); id != "" {
			input.RequestID = &id
		}
	}

	return input
}

// POST /api/v1/logs
//
// Internal service-to-service endpoint; protection is expected from the
// deployment's internal trust boundary, not this layer.
func (h *LogHandler) Create(c *gin.Context) {
	var req createLogRequest
	if !bindAndValidate(c, &req) {
		return
	}

	entry, err := h.svc.Log(requestContext(c), req.toInput(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, entry)
}

type createLogsBulkRequest struct {
	Entries []createLogRequest `json:"entries" validate:"required,min=1,dive"`
}

// POST /api/v1/logs/bulk
func (h *LogHandler) CreateBulk(c *gin.Context) {
	var req createLogsBulkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	inputs := make([]services.LogInput, 0, len(req.Entries))
	for i := range req.Entries {
		inputs = append(inputs, req.Entries[i].toInput(c))
	}

	entries, err := h.svc.LogMany(requestContext(c), inputs)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"entries": entries, "count": len(entries)})
}
