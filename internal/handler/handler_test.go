package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/model"
)

// --- 共有モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn       func(ctx context.Context, username, password string) (*model.Session, *model.User, error)
	logoutFn      func(ctx context.Context, sessionID string) error
	currentUserFn func(ctx context.Context, session *model.Session) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return testSession(), testUser(), nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, session *model.Session) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, session)
	}
	return testUser(), nil
}

// mockSessionExpirer はSessionExpirerのモック実装。
type mockSessionExpirer struct {
	expiredIDs []string
}

func (m *mockSessionExpirer) ExpireSession(_ context.Context, sessionID string) {
	m.expiredIDs = append(m.expiredIDs, sessionID)
}

// --- テストヘルパー ---

func testUser() *model.User {
	return &model.User{
		ID:       "user-123",
		Username: "operator",
		Email:    "operator@example.com",
	}
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "session-abc",
		UserID:    "user-123",
		Token:     "upstream-token-xyz",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, session *model.Session) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), session)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseErrorResponse はレスポンスボディから統一エラーフォーマットをパースするヘルパー。
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// testErrorWriter はセッション破棄モックを持つErrorWriterを返すヘルパー。
func testErrorWriter() (*ErrorWriter, *mockSessionExpirer) {
	expirer := &mockSessionExpirer{}
	return NewErrorWriter(expirer, CookieConfig{MaxAge: 86400}), expirer
}
