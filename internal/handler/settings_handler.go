package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	Get(ctx context.Context, token string) (json.RawMessage, error)
	Update(ctx context.Context, token string, settings map[string]any) (json.RawMessage, error)
}

// SettingsHandler はアウトリーチ設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
	errors  *ErrorWriter
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface, errors *ErrorWriter) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		errors:  errors,
	}
}

// Get は現在の設定を返す。設定項目は外部サービスの応答を透過的に返す。
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	data, err := h.service.Get(r.Context(), session.Token)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// Update は設定を更新する。ボディのキーは解釈せずそのまま転送する。
// PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ボディを解析できません"))
		return
	}

	data, err := h.service.Update(r.Context(), session.Token, payload)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}
