package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ゲートウェイのエラー分類。呼び出し側はerrors.Isで種別を判定できる。
var (
	// ErrTimeout は外部サービスがタイムアウト時間内に応答しなかったことを表す。
	ErrTimeout = errors.New("gateway: upstream timeout")
	// ErrNetwork はレスポンスを受信できなかったことを表す（ステータスなし）。
	ErrNetwork = errors.New("gateway: network failure")
	// ErrAuthExpired は外部サービスが401を返したことを表す。
	// HTTP層がこのエラーを集中処理し、ローカルセッションを破棄する。
	ErrAuthExpired = errors.New("gateway: authentication expired")
)

// UpstreamError は外部WebhookサービスがHTTPエラーステータスを返した
// ことを表す。Messageには外部サービスのmessageフィールドをそのまま
// 保持する（空の場合もある）。
type UpstreamError struct {
	Action  string // 失敗したアクション名
	Status  int    // HTTPステータスコード
	Message string // 外部サービスが返したメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: action %s failed with status %d: %s", e.Action, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: action %s failed with status %d", e.Action, e.Status)
}

// Unwrap は401の場合にErrAuthExpiredを返し、errors.Isによる
// 集中判定を可能にする。
func (e *UpstreamError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	return nil
}

// IsServerError は5xxエラー（リトライ上限到達後）かどうかを判定する。
func IsServerError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status >= 500
}

// IsClientError は4xxエラー（リトライ対象外）かどうかを判定する。
func IsClientError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500
}

// UpstreamMessage は外部サービスが返したメッセージを取り出す。
// UpstreamErrorでない場合は空文字列を返す。
func UpstreamMessage(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return ""
}

// classifyTransportError はトランスポートレベルの失敗をタイムアウトと
// ネットワーク障害に分類する。いずれもリトライ対象外。
func classifyTransportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
