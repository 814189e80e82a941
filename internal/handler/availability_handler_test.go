package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/internal/dto"
)

// MockAvailabilityService is a mock implementation of AvailabilityService for testing
type MockAvailabilityService struct {
	GetAvailabilityFunc func(ctx context.Context, resourceID string, start, end time.Time) (*dto.AvailabilityResponse, error)
}

func (m *MockAvailabilityService) GetAvailability(ctx context.Context, resourceID string, start, end time.Time) (*dto.AvailabilityResponse, error) {
	if m.GetAvailabilityFunc != nil {
		return m.GetAvailabilityFunc(ctx, resourceID, start, end)
	}
	return nil, nil
}

func setupAvailabilityRouter(handler *AvailabilityHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/resources/:id/availability", handler.GetAvailability)
	return router
}

func TestAvailabilityHandler_GetAvailability(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	tests := []struct {
		name           string
		query          string
		mockFunc       func(ctx context.Context, resourceID string, start, end time.Time) (*dto.AvailabilityResponse, error)
		expectedStatus int
	}{
		{
			name:  "free windows returned",
			query: "?start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339),
			mockFunc: func(ctx context.Context, resourceID string, qs, qe time.Time) (*dto.AvailabilityResponse, error) {
				return &dto.AvailabilityResponse{
					ResourceID: resourceID,
					Start:      qs,
					End:        qe,
					Windows: []dto.WindowResponse{
						{Start: qs, End: qs.Add(time.Hour)},
						{Start: qs.Add(2 * time.Hour), End: qe},
					},
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing start parameter",
			query:          "?end=" + end.Format(time.RFC3339),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed end parameter",
			query:          "?start=" + start.Format(time.RFC3339) + "&end=tomorrow",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "resource not found",
			query: "?start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339),
			mockFunc: func(ctx context.Context, resourceID string, qs, qe time.Time) (*dto.AvailabilityResponse, error) {
				return nil, domain.ErrResourceNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:  "query beyond horizon",
			query: "?start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339),
			mockFunc: func(ctx context.Context, resourceID string, qs, qe time.Time) (*dto.AvailabilityResponse, error) {
				return nil, domain.ErrInvalidInterval
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAvailabilityHandler(&MockAvailabilityService{GetAvailabilityFunc: tt.mockFunc})
			router := setupAvailabilityRouter(handler)

			req := httptest.NewRequest(http.MethodGet, "/resources/room-1/availability"+tt.query, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler(nil, nil)
	router.GET("/health", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
}

func TestHealthHandler_ReadyWithoutBackends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler(nil, nil)
	router.GET("/ready", handler.Ready)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Components["database"] != "not configured" {
		t.Errorf("unexpected database component: %s", resp.Components["database"])
	}
}
