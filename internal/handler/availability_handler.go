package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/pkg/response"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// AvailabilityHandler serves free-window queries.
type AvailabilityHandler struct {
	availabilityService service.AvailabilityService
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(availabilityService service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

// GetAvailability handles GET /resources/:id/availability
// Both start and end query parameters are required, RFC 3339 formatted.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.availability.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	resourceID := c.Param("id")
	if resourceID == "" {
		span.SetStatus(codes.Error, "resource id required")
		response.BadRequest(c, "resource id required")
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		span.SetStatus(codes.Error, "invalid start")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "start must be an RFC 3339 timestamp", err.Error())
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		span.SetStatus(codes.Error, "invalid end")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "end must be an RFC 3339 timestamp", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.String("start", start.Format(time.RFC3339)),
		attribute.String("end", end.Format(time.RFC3339)),
	)

	result, err := h.availabilityService.GetAvailability(ctx, resourceID, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("windows", len(result.Windows)),
		attribute.Bool("cached", result.Cached),
	)
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
