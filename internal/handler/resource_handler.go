package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/pkg/response"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// ResourceHandler manages the bookable resource catalog.
type ResourceHandler struct {
	bookingService service.BookingService
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(bookingService service.BookingService) *ResourceHandler {
	return &ResourceHandler{bookingService: bookingService}
}

// CreateResource handles POST /resources
func (h *ResourceHandler) CreateResource(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.resource.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("name", req.Name),
		attribute.Int("capacity", req.Capacity),
	)

	result, err := h.bookingService.CreateResource(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("resource_id", result.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// GetResource handles GET /resources/:id
func (h *ResourceHandler) GetResource(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.resource.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	resourceID := c.Param("id")
	if resourceID == "" {
		span.SetStatus(codes.Error, "resource id required")
		response.BadRequest(c, "resource id required")
		return
	}

	span.SetAttributes(attribute.String("resource_id", resourceID))

	result, err := h.bookingService.GetResource(ctx, resourceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ListResources handles GET /resources
func (h *ResourceHandler) ListResources(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.resource.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := c.Query("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	result, err := h.bookingService.ListResources(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// UpdateCapacity handles PATCH /resources/:id/capacity
func (h *ResourceHandler) UpdateCapacity(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.resource.update_capacity")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	resourceID := c.Param("id")
	if resourceID == "" {
		span.SetStatus(codes.Error, "resource id required")
		response.BadRequest(c, "resource id required")
		return
	}

	var req dto.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "capacity is required", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.Int("capacity", req.Capacity),
	)

	result, err := h.bookingService.UpdateCapacity(ctx, resourceID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
