package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

// ProductServiceInterface はプロダクトハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	List(ctx context.Context, token string) (json.RawMessage, error)
	Create(ctx context.Context, token string, input model.Product) (json.RawMessage, error)
	Update(ctx context.Context, token, id string, input model.Product) (json.RawMessage, error)
	Delete(ctx context.Context, token, id string) error
}

// ProductHandler はプロダクト管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
	errors  *ErrorWriter
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface, errors *ErrorWriter) *ProductHandler {
	return &ProductHandler{
		service: service,
		errors:  errors,
	}
}

// List はプロダクト一覧を返す。
// GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	data, err := h.service.List(r.Context(), session.Token)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// Create はプロダクトを作成する。
// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var input model.Product
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ボディを解析できません"))
		return
	}

	data, err := h.service.Create(r.Context(), session.Token, input)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusCreated, data)
}

// Update はプロダクトを更新する。
// PUT /api/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("プロダクトIDが指定されていません"))
		return
	}

	var input model.Product
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ボディを解析できません"))
		return
	}

	data, err := h.service.Update(r.Context(), session.Token, id, input)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// Delete はプロダクトを削除する。
// DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("プロダクトIDが指定されていません"))
		return
	}

	if err := h.service.Delete(r.Context(), session.Token, id); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
