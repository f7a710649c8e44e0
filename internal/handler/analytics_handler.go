package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

// AnalyticsServiceInterface は分析ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	Get(ctx context.Context, token, analyticsType, dateRange string) (json.RawMessage, error)
}

// AnalyticsHandler は分析データ取得のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
	errors  *ErrorWriter
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface, errors *ErrorWriter) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		errors:  errors,
	}
}

// Get は指定タイプの分析データを返す。
// GET /api/analytics/{type}?dateRange=30d
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	analyticsType := chi.URLParam(r, "type")
	dateRange := r.URL.Query().Get("dateRange")

	data, err := h.service.Get(r.Context(), session.Token, analyticsType, dateRange)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}
