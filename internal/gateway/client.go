package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultMaxRetries は5xx時の最大追加リトライ回数（初回+3回=最大4試行）。
	defaultMaxRetries = 3
	// defaultRetryDelay はリトライ間の固定遅延。
	defaultRetryDelay = 1 * time.Second
	// maxResponseBody はレスポンスボディの読み取り上限（5MiB）。
	maxResponseBody = 5 << 20
)

// Response は外部Webhookサービスの成功レスポンスを表す。
// Dataは不透明なペイロードとしてそのまま呼び出し側に渡す。
type Response struct {
	Data    json.RawMessage
	Message string
}

// responseEnvelope はレスポンスボディの共通フォーマット。
// 成功時はdata、エラー時はmessageを含むことが期待される。
type responseEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// MetricsCollector はゲートウェイのメトリクス収集のインターフェース。
type MetricsCollector interface {
	RecordDispatch(action string, statusCode int)
	RecordRetry(action string)
	RecordDispatchLatency(action string, d time.Duration)
	RecordTransportFailure(action string, kind string)
}

// nopCollector はメトリクス未設定時に使用する何もしない実装。
type nopCollector struct{}

func (nopCollector) RecordDispatch(string, int)                  {}
func (nopCollector) RecordRetry(string)                          {}
func (nopCollector) RecordDispatchLatency(string, time.Duration) {}
func (nopCollector) RecordTransportFailure(string, string)       {}

// ClientConfig はゲートウェイクライアントの設定。
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	MaxRetries int           // 0以下の場合はデフォルト値を使用
	RetryDelay time.Duration // 0以下の場合はデフォルト値を使用
}

// Client は外部Webhookサービスのクライアント。
// 全ドメイン操作の唯一の出口であり、エンベロープ形式・認証ヘッダー・
// タイムアウト・リトライポリシーをここで一元的に適用する。
// キャッシュ・重複排除・リクエスト結合は行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsCollector
	endpoint   string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはタイムアウト設定済みのクライアントを渡す
// （本番ではsafeurlのSSRF防止クライアントを想定）。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    nopCollector{},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// SetMetrics はメトリクスコレクターを設定する。
func (c *Client) SetMetrics(m MetricsCollector) {
	if m != nil {
		c.metrics = m
	}
}

// Dispatch はアクションを外部Webhookサービスへ送信する。
// tokenが空でない場合はAuthorization: Bearerヘッダーを付与する。
//
// リトライポリシー: ステータス500以上の場合のみ、固定遅延を挟んで
// 最大maxRetries回まで再送する。4xxおよびトランスポートレベルの失敗は
// リトライしない。非冪等アクションには試行間で同一の冪等性キーを
// 付与し、サーバー側での二重適用排除を可能にする。
//
// 401は呼び出し元アクションに関わらずErrAuthExpiredとして返し、
// HTTP層のセッション破棄の集中処理に委ねる。
func (c *Client) Dispatch(ctx context.Context, token string, action Action) (*Response, error) {
	body, err := EncodeEnvelope(action)
	if err != nil {
		return nil, err
	}

	idempotencyKey := ""
	if !action.idempotent() {
		idempotencyKey = uuid.New().String()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(action.name())
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("リトライ待機中にコンテキストが終了しました: %w", ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		start := time.Now()
		status, respBody, err := c.send(ctx, token, idempotencyKey, body)
		if err != nil {
			// レスポンスを受信できなかった失敗はリトライしない
			classified := classifyTransportError(err)
			kind := "network"
			if errors.Is(classified, ErrTimeout) {
				kind = "timeout"
			}
			c.metrics.RecordTransportFailure(action.name(), kind)
			c.logger.Error("外部サービスへのリクエストに失敗しました",
				slog.String("action", action.name()),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
			return nil, classified
		}

		c.metrics.RecordDispatch(action.name(), status)
		c.metrics.RecordDispatchLatency(action.name(), time.Since(start))

		switch {
		case status >= 200 && status < 300:
			return decodeResponse(respBody), nil

		case status >= 500:
			lastErr = &UpstreamError{
				Action:  action.name(),
				Status:  status,
				Message: extractMessage(respBody),
			}
			c.logger.Warn("外部サービスがサーバーエラーを返しました",
				slog.String("action", action.name()),
				slog.Int("http_status", status),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", c.maxRetries+1),
			)
			continue

		case status == http.StatusUnauthorized:
			c.logger.Warn("外部サービスが認証エラーを返しました",
				slog.String("action", action.name()),
			)
			return nil, &UpstreamError{
				Action:  action.name(),
				Status:  status,
				Message: extractMessage(respBody),
			}

		default:
			// その他の4xx: リトライせずそのまま返す
			c.logger.Warn("外部サービスがリクエストを拒否しました",
				slog.String("action", action.name()),
				slog.Int("http_status", status),
			)
			return nil, &UpstreamError{
				Action:  action.name(),
				Status:  status,
				Message: extractMessage(respBody),
			}
		}
	}

	c.logger.Error("リトライ上限に到達しました",
		slog.String("action", action.name()),
		slog.Int("attempts", c.maxRetries+1),
	)
	return nil, lastErr
}

// send は1回分のHTTP往復を実行し、ステータスコードとボディを返す。
// リクエストは試行ごとに作り直す（ボディのReaderを再利用しないため）。
func (c *Client) send(ctx context.Context, token, idempotencyKey string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// decodeResponse は成功レスポンスをResponseに変換する。
// dataフィールドを持たないレスポンスはボディ全体をDataとして扱う。
func decodeResponse(body []byte) *Response {
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return &Response{Data: json.RawMessage(body)}
	}
	return &Response{Data: envelope.Data, Message: envelope.Message}
}

// extractMessage はエラーレスポンスからmessageフィールドを取り出す。
// JSONでない・messageがない場合は空文字列を返す。
func extractMessage(body []byte) string {
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}
