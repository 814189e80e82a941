package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/internal/service"
	"github.com/aikokik/bookabl-api/pkg/middleware"
	"github.com/aikokik/bookabl-api/pkg/response"
	"github.com/aikokik/bookabl-api/pkg/telemetry"
)

// BookingHandler handles the hold and reservation lifecycle over HTTP.
// Every mutation goes through the booking service; the handler only maps
// identity, payloads, and errors.
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// PlaceHold handles POST /resources/:id/holds
func (h *BookingHandler) PlaceHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.place_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "owner identity required")
		return
	}

	resourceID := c.Param("id")
	if resourceID == "" {
		span.SetStatus(codes.Error, "resource id required")
		response.BadRequest(c, "resource id required")
		return
	}

	var req dto.HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("resource_id", resourceID),
		attribute.String("owner_id", ownerID),
	)

	result, err := h.bookingService.PlaceHold(ctx, resourceID, ownerID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("hold_id", result.HoldID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// ConfirmHold handles POST /holds/:id/confirm
func (h *BookingHandler) ConfirmHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.confirm_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "owner identity required")
		return
	}

	holdID := c.Param("id")
	if holdID == "" {
		span.SetStatus(codes.Error, "hold id required")
		response.BadRequest(c, "hold id required")
		return
	}

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("owner_id", ownerID),
	)

	result, err := h.bookingService.ConfirmHold(ctx, holdID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", result.ReservationID))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ReleaseHold handles DELETE /holds/:id
func (h *BookingHandler) ReleaseHold(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.release_hold")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "owner identity required")
		return
	}

	holdID := c.Param("id")
	if holdID == "" {
		span.SetStatus(codes.Error, "hold id required")
		response.BadRequest(c, "hold id required")
		return
	}

	span.SetAttributes(
		attribute.String("hold_id", holdID),
		attribute.String("owner_id", ownerID),
	)

	result, err := h.bookingService.ReleaseHold(ctx, holdID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// CancelReservation handles POST /reservations/:id/cancel
func (h *BookingHandler) CancelReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel_reservation")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "owner identity required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id required")
		return
	}

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "version is required", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("reservation_id", reservationID),
		attribute.String("owner_id", ownerID),
		attribute.Int64("version", req.Version),
	)

	result, err := h.bookingService.CancelReservation(ctx, reservationID, ownerID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetReservation handles GET /reservations/:id
func (h *BookingHandler) GetReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_reservation")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "owner identity required")
		return
	}

	reservationID := c.Param("id")
	if reservationID == "" {
		span.SetStatus(codes.Error, "reservation id required")
		response.BadRequest(c, "reservation id required")
		return
	}

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	result, err := h.bookingService.GetReservation(ctx, reservationID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// handleError converts domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		response.Conflict(c, "CAPACITY_EXCEEDED", err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		response.Conflict(c, "VERSION_CONFLICT", err.Error())
	case errors.Is(err, domain.ErrCapacityInUse):
		response.Conflict(c, "CAPACITY_IN_USE", err.Error())
	case domain.IsExpiredError(err):
		response.Gone(c, "HOLD_EXPIRED", err.Error())
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
