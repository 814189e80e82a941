package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
	"github.com/aikokik/bookabl-api/pkg/middleware"
	"github.com/aikokik/bookabl-api/pkg/response"
)

// MockBookingService is a mock implementation of BookingService for testing
type MockBookingService struct {
	PlaceHoldFunc         func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error)
	ConfirmHoldFunc       func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error)
	ReleaseHoldFunc       func(ctx context.Context, holdID, ownerID string) (*dto.ReleaseResponse, error)
	CancelReservationFunc func(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error)
	GetReservationFunc    func(ctx context.Context, reservationID, ownerID string) (*dto.ReservationResponse, error)
	CreateResourceFunc    func(ctx context.Context, req *dto.CreateResourceRequest) (*dto.ResourceResponse, error)
	GetResourceFunc       func(ctx context.Context, resourceID string) (*dto.ResourceResponse, error)
	ListResourcesFunc     func(ctx context.Context, limit, offset int) (*dto.ResourceListResponse, error)
	UpdateCapacityFunc    func(ctx context.Context, resourceID string, req *dto.UpdateCapacityRequest) (*dto.ResourceResponse, error)
}

func (m *MockBookingService) PlaceHold(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
	if m.PlaceHoldFunc != nil {
		return m.PlaceHoldFunc(ctx, resourceID, ownerID, req)
	}
	return nil, nil
}

func (m *MockBookingService) ConfirmHold(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
	if m.ConfirmHoldFunc != nil {
		return m.ConfirmHoldFunc(ctx, holdID, ownerID)
	}
	return nil, nil
}

func (m *MockBookingService) ReleaseHold(ctx context.Context, holdID, ownerID string) (*dto.ReleaseResponse, error) {
	if m.ReleaseHoldFunc != nil {
		return m.ReleaseHoldFunc(ctx, holdID, ownerID)
	}
	return nil, nil
}

func (m *MockBookingService) CancelReservation(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error) {
	if m.CancelReservationFunc != nil {
		return m.CancelReservationFunc(ctx, reservationID, ownerID, req)
	}
	return nil, nil
}

func (m *MockBookingService) GetReservation(ctx context.Context, reservationID, ownerID string) (*dto.ReservationResponse, error) {
	if m.GetReservationFunc != nil {
		return m.GetReservationFunc(ctx, reservationID, ownerID)
	}
	return nil, nil
}

func (m *MockBookingService) CreateResource(ctx context.Context, req *dto.CreateResourceRequest) (*dto.ResourceResponse, error) {
	if m.CreateResourceFunc != nil {
		return m.CreateResourceFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockBookingService) GetResource(ctx context.Context, resourceID string) (*dto.ResourceResponse, error) {
	if m.GetResourceFunc != nil {
		return m.GetResourceFunc(ctx, resourceID)
	}
	return nil, nil
}

func (m *MockBookingService) ListResources(ctx context.Context, limit, offset int) (*dto.ResourceListResponse, error) {
	if m.ListResourcesFunc != nil {
		return m.ListResourcesFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockBookingService) UpdateCapacity(ctx context.Context, resourceID string, req *dto.UpdateCapacityRequest) (*dto.ResourceResponse, error) {
	if m.UpdateCapacityFunc != nil {
		return m.UpdateCapacityFunc(ctx, resourceID, req)
	}
	return nil, nil
}

func setupTestRouter(handler *BookingHandler, ownerID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if ownerID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyOwnerID, ownerID)
			c.Next()
		})
	}

	router.POST("/resources/:id/holds", handler.PlaceHold)
	router.POST("/holds/:id/confirm", handler.ConfirmHold)
	router.DELETE("/holds/:id", handler.ReleaseHold)
	router.POST("/reservations/:id/cancel", handler.CancelReservation)
	router.GET("/reservations/:id", handler.GetReservation)

	return router
}

func decodeError(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

func TestBookingHandler_PlaceHold(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name           string
		ownerID        string
		body           interface{}
		mockFunc       func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful hold",
			ownerID: "owner-a",
			body:    dto.HoldRequest{Start: start, End: end},
			mockFunc: func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
				return &dto.HoldResponse{
					HoldID:     "hold-123",
					ResourceID: resourceID,
					OwnerID:    ownerID,
					Start:      req.Start,
					End:        req.End,
					ExpiresAt:  time.Now().Add(10 * time.Minute),
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unauthorized without owner",
			ownerID:        "",
			body:           dto.HoldRequest{Start: start, End: end},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "missing interval fields",
			ownerID:        "owner-a",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:    "capacity exceeded",
			ownerID: "owner-a",
			body:    dto.HoldRequest{Start: start, End: end},
			mockFunc: func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
				return nil, domain.ErrCapacityExceeded
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "CAPACITY_EXCEEDED",
		},
		{
			name:    "resource not found",
			ownerID: "owner-a",
			body:    dto.HoldRequest{Start: start, End: end},
			mockFunc: func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
				return nil, domain.ErrResourceNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:    "interval rejected by validation",
			ownerID: "owner-a",
			body:    dto.HoldRequest{Start: end, End: start},
			mockFunc: func(ctx context.Context, resourceID, ownerID string, req *dto.HoldRequest) (*dto.HoldResponse, error) {
				return nil, domain.ErrInvalidInterval
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewBookingHandler(&MockBookingService{PlaceHoldFunc: tt.mockFunc})
			router := setupTestRouter(handler, tt.ownerID)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/resources/room-1/holds", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				if code := decodeError(t, w.Body); code != tt.expectedCode {
					t.Errorf("expected code %s, got %s", tt.expectedCode, code)
				}
			}
		})
	}
}

func TestBookingHandler_ConfirmHold(t *testing.T) {
	tests := []struct {
		name           string
		ownerID        string
		mockFunc       func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful confirmation",
			ownerID: "owner-a",
			mockFunc: func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
				return &dto.ConfirmResponse{
					ReservationID: "res-123",
					ResourceID:    "room-1",
					Status:        "confirmed",
					Version:       1,
					ConfirmedAt:   time.Now(),
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "hold expired",
			ownerID: "owner-a",
			mockFunc: func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
				return nil, domain.ErrHoldExpired
			},
			expectedStatus: http.StatusGone,
			expectedCode:   "HOLD_EXPIRED",
		},
		{
			name:    "not the owner",
			ownerID: "owner-b",
			mockFunc: func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
				return nil, domain.ErrNotOwner
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   "FORBIDDEN",
		},
		{
			name:    "hold not found",
			ownerID: "owner-a",
			mockFunc: func(ctx context.Context, holdID, ownerID string) (*dto.ConfirmResponse, error) {
				return nil, domain.ErrHoldNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewBookingHandler(&MockBookingService{ConfirmHoldFunc: tt.mockFunc})
			router := setupTestRouter(handler, tt.ownerID)

			req := httptest.NewRequest(http.MethodPost, "/holds/hold-123/confirm", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				if code := decodeError(t, w.Body); code != tt.expectedCode {
					t.Errorf("expected code %s, got %s", tt.expectedCode, code)
				}
			}
		})
	}
}

func TestBookingHandler_CancelReservation(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		mockFunc       func(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "successful cancellation",
			body: dto.CancelRequest{Version: 1},
			mockFunc: func(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error) {
				return &dto.CancelResponse{
					ReservationID: reservationID,
					Status:        "cancelled",
					Version:       2,
					CancelledAt:   time.Now(),
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing version",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name: "stale version",
			body: dto.CancelRequest{Version: 1},
			mockFunc: func(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error) {
				return nil, domain.ErrVersionConflict
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "VERSION_CONFLICT",
		},
		{
			name: "reservation not found",
			body: dto.CancelRequest{Version: 1},
			mockFunc: func(ctx context.Context, reservationID, ownerID string, req *dto.CancelRequest) (*dto.CancelResponse, error) {
				return nil, domain.ErrReservationNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewBookingHandler(&MockBookingService{CancelReservationFunc: tt.mockFunc})
			router := setupTestRouter(handler, "owner-a")

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/reservations/res-123/cancel", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				if code := decodeError(t, w.Body); code != tt.expectedCode {
					t.Errorf("expected code %s, got %s", tt.expectedCode, code)
				}
			}
		})
	}
}

func TestBookingHandler_ReleaseHold(t *testing.T) {
	handler := NewBookingHandler(&MockBookingService{
		ReleaseHoldFunc: func(ctx context.Context, holdID, ownerID string) (*dto.ReleaseResponse, error) {
			return &dto.ReleaseResponse{HoldID: holdID, Status: "released"}, nil
		},
	})
	router := setupTestRouter(handler, "owner-a")

	req := httptest.NewRequest(http.MethodDelete, "/holds/hold-123", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}
