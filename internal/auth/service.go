// Package auth はログイン・セッション管理を提供する。
// 資格情報の検証は外部Webhookサービスに委譲し、本サービスは
// セッションの発行・破棄と外部サービスBearerトークンの保管を担う。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/model"
	"github.com/hitoshi/redditreach/internal/repository"
)

// デモバックドアの資格情報。DemoLoginEnabledがtrueの場合のみ有効。
const (
	demoUsername = "demo"
	demoPassword = "demo123"
)

// Dispatcher は外部Webhookサービスへのディスパッチに必要なインターフェース。
// gateway.Clientの部分集合として定義する。
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge    int  // セッション有効期間（秒）
	DemoLoginEnabled bool // デモ資格情報によるバイパスログインの有効化
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	dispatcher  Dispatcher
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	dispatcher Dispatcher,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		dispatcher:  dispatcher,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// loginResult は外部サービスのログイン応答のペイロード。
type loginResult struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// Login は資格情報を検証し、セッションを発行する。
//
// DemoLoginEnabledが有効かつデモ資格情報が与えられた場合は外部サービスへ
// 到達せずローカルでセッションを発行する（デモトークンを生成）。
// それ以外は外部Webhookサービスのloginアクションで検証し、返却された
// Bearerトークンとユーザープロフィールを保存する。
//
// 外部サービスが4xxで拒否した場合はINVALID_CREDENTIALSのAPIErrorを返す。
// 5xxやトランスポート障害はそのまま返し、HTTP層の集中処理に委ねる。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	if s.config.DemoLoginEnabled && username == demoUsername && password == demoPassword {
		return s.demoLogin(ctx)
	}

	resp, err := s.dispatcher.Dispatch(ctx, "", gateway.LoginAction{
		Username: username,
		Password: password,
	})
	if err != nil {
		// ログイン時の4xxは資格情報の誤りとして扱う（401もセッション失効ではない）
		var upstreamErr *gateway.UpstreamError
		if errors.As(err, &upstreamErr) && gateway.IsClientError(upstreamErr) {
			slog.Warn("login rejected by upstream",
				slog.String("username", username),
				slog.Int("http_status", upstreamErr.Status),
			)
			return nil, nil, model.NewInvalidCredentialsError(upstreamErr.Message, s.config.DemoLoginEnabled)
		}
		return nil, nil, fmt.Errorf("failed to dispatch login: %w", err)
	}

	var result loginResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.Token == "" || result.User.ID == "" {
		return nil, nil, fmt.Errorf("login response is missing token or user")
	}

	now := time.Now()
	user := &model.User{
		ID:        result.User.ID,
		Username:  result.User.Username,
		Email:     result.User.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID, result.Token)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return session, user, nil
}

// demoLogin は外部サービスへ到達せずにデモセッションを発行する。
// トークンはミリ秒タイムスタンプ付きのデモトークンを生成する。
func (s *Service) demoLogin(ctx context.Context) (*model.Session, *model.User, error) {
	now := time.Now()
	user := &model.User{
		ID:        "1",
		Username:  demoUsername,
		Email:     "demo@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to upsert demo user: %w", err)
	}

	token := fmt.Sprintf("demo-jwt-token-%d", now.UnixMilli())
	session, err := s.createSession(ctx, user.ID, token)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("demo user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はセッションに紐づくユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, session *model.Session) (*model.User, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// ExpireSession は外部サービスが401を返した際の集中処理として
// セッションを破棄する。破棄の失敗はログに記録するのみで、
// 呼び出し元の401応答は妨げない。
func (s *Service) ExpireSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Error("failed to expire session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("session expired by upstream", slog.String("session_id", sessionID))
}

// createSession はセッションを作成し永続化する。
// tokenには外部サービスが発行したBearerトークンを保存する。
func (s *Service) createSession(ctx context.Context, userID, token string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
