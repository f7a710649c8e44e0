package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListPending(ctx context.Context, token string) ([]model.PendingComment, error)
	Approve(ctx context.Context, token, id string, editedComment *string) (json.RawMessage, error)
	Reject(ctx context.Context, token, id, reason string) (json.RawMessage, error)
	BulkApprove(ctx context.Context, token string, ids []string) *model.BulkModerationResult
	BulkReject(ctx context.Context, token string, ids []string, reason string) *model.BulkModerationResult
}

// CommentHandler はコメントモデレーションのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
	errors  *ErrorWriter
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, errors *ErrorWriter) *CommentHandler {
	return &CommentHandler{
		service: service,
		errors:  errors,
	}
}

// ListPending は承認待ちコメント一覧を返す。
// GET /api/comments/pending
func (h *CommentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	comments, err := h.service.ListPending(r.Context(), session.Token)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	if comments == nil {
		comments = []model.PendingComment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// approveRequest は承認のリクエストボディ。
// editedCommentが指定された場合は編集済み本文で投稿される。
type approveRequest struct {
	EditedComment *string `json:"editedComment"`
}

// Approve はコメントを承認する。
// POST /api/comments/{id}/approve
func (h *CommentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")

	// ボディは省略可能（編集なし承認）
	var req approveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	data, err := h.service.Approve(r.Context(), session.Token, id, req.EditedComment)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// rejectRequest は却下のリクエストボディ。
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject はコメントを却下する。
// POST /api/comments/{id}/reject
func (h *CommentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id := chi.URLParam(r, "id")

	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	data, err := h.service.Reject(r.Context(), session.Token, id, req.Reason)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// bulkRequest は一括操作のリクエストボディ。
type bulkRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason,omitempty"`
}

// bulkResponse は一括操作のレスポンスボディ。
// 一部失敗時はerrorフィールドに集計メッセージを含める。
type bulkResponse struct {
	Succeeded int                           `json:"succeeded"`
	Failed    int                           `json:"failed"`
	FailedIDs []string                      `json:"failed_ids,omitempty"`
	Error     *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// BulkApprove は複数コメントを一括承認する。
// POST /api/comments/bulk/approve
// 一部失敗時もロールバックは行わず、結果を集計して返す。
func (h *CommentHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	ids, ok := h.decodeBulkIDs(w, r)
	if !ok {
		return
	}

	result := h.service.BulkApprove(r.Context(), session.Token, ids)
	writeJSON(w, http.StatusOK, bulkResponseFrom(result))
}

// BulkReject は複数コメントを一括却下する。
// POST /api/comments/bulk/reject
func (h *CommentHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ボディを解析できません"))
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ids", "対象IDを1件以上指定してください"))
		return
	}

	result := h.service.BulkReject(r.Context(), session.Token, req.IDs, req.Reason)
	writeJSON(w, http.StatusOK, bulkResponseFrom(result))
}

// decodeBulkIDs は一括操作のIDリストを取り出す。不正な場合はエラー応答を書き込む。
func (h *CommentHandler) decodeBulkIDs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ボディを解析できません"))
		return nil, false
	}
	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ids", "対象IDを1件以上指定してください"))
		return nil, false
	}
	return req.IDs, true
}

// bulkResponseFrom は集計結果をレスポンスボディに変換する。
func bulkResponseFrom(result *model.BulkModerationResult) bulkResponse {
	resp := bulkResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		FailedIDs: result.FailedIDs,
	}
	if result.Failed > 0 {
		apiErr := model.NewBulkPartialFailureError(result.Succeeded, result.Failed)
		resp.Error = &middleware.ErrorResponseBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}
	}
	return resp
}
