// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

const sessionCookieName = "session_id"

// SessionExpirer は外部サービスが401を返した際のセッション破棄に
// 必要なインターフェース。
type SessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID string)
}

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// ErrorWriter はサービス層のエラーをHTTPレスポンスへ変換する。
// 外部サービスの401の集中処理（ローカルセッション破棄 + Cookie削除 +
// 401応答）もここで行う。
type ErrorWriter struct {
	expirer SessionExpirer
	cookie  CookieConfig
}

// NewErrorWriter はErrorWriterを生成する。
func NewErrorWriter(expirer SessionExpirer, cookie CookieConfig) *ErrorWriter {
	return &ErrorWriter{
		expirer: expirer,
		cookie:  cookie,
	}
}

// Write はエラーを分類し、統一フォーマットでレスポンスを書き込む。
//
// 分類順序:
//  1. *model.APIError（バリデーション等のフォームレベルエラー）
//  2. 外部サービスの401（セッション破棄の集中処理）
//  3. タイムアウト / ネットワーク障害
//  4. 外部サービスの5xx / 4xx
//  5. それ以外は500
func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	if errors.Is(err, gateway.ErrAuthExpired) {
		e.expireSession(w, r)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return
	}

	if errors.Is(err, gateway.ErrTimeout) {
		middleware.WriteErrorResponse(w, http.StatusGatewayTimeout, model.NewUpstreamTimeoutError())
		return
	}
	if errors.Is(err, gateway.ErrNetwork) {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError(""))
		return
	}

	if gateway.IsServerError(err) {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError(gateway.UpstreamMessage(err)))
		return
	}
	if gateway.IsClientError(err) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUpstreamRejectedError(gateway.UpstreamMessage(err)))
		return
	}

	slog.Error("unhandled service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// expireSession はローカルセッションを破棄し、セッションCookieを削除する。
func (e *ErrorWriter) expireSession(w http.ResponseWriter, r *http.Request) {
	if session, err := middleware.SessionFromContext(r.Context()); err == nil {
		e.expirer.ExpireSession(r.Context(), session.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   e.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   e.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// statusForAPIError はAPIErrorのコードからHTTPステータスを決定する。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeSessionExpired, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case model.ErrCodeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeRawJSON は外部サービスの応答を不透明なまま書き込む。
// dataが空の場合は空オブジェクトを返す。
func writeRawJSON(w http.ResponseWriter, statusCode int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write response", slog.String("error", err.Error()))
	}
}
