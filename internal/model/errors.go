package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamRejected   = "UPSTREAM_REJECTED"
	ErrCodeBulkPartialFailure = "BULK_PARTIAL_FAILURE"
	ErrCodeInvalidAnalytics   = "INVALID_ANALYTICS_TYPE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
// 外部サービスが401を返した場合の集中処理で使用する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// upstreamMessageが空の場合は汎用メッセージを使用する。
// demoHintがtrueの場合はデモ資格情報の案内を対処方法に含める。
func NewInvalidCredentialsError(upstreamMessage string, demoHint bool) *APIError {
	msg := upstreamMessage
	if msg == "" {
		msg = "ユーザー名またはパスワードが正しくありません。"
	}
	action := "資格情報を確認して再度お試しください。"
	if demoHint {
		action = "資格情報を確認してください。デモ環境では username: demo / password: demo123 を使用できます。"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  msg,
		Category: "auth",
		Action:   action,
	}
}

// NewInvalidRequestError はリクエスト解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
// フォームレベルのエラーでありネットワークには到達しない。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewUpstreamError は外部Webhookサービスのエラーを生成する。
// messageには外部サービスが返したメッセージをそのまま表示する。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "外部サービスでエラーが発生しました。"
	}
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  message,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamTimeoutError は外部Webhookサービスのタイムアウトエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "外部サービスが時間内に応答しませんでした。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamRejectedError は外部Webhookサービスが4xxで拒否した場合の
// エラーを生成する。messageは外部サービスのメッセージをそのまま表示する。
func NewUpstreamRejectedError(message string) *APIError {
	if message == "" {
		message = "外部サービスがリクエストを拒否しました。"
	}
	return &APIError{
		Code:     ErrCodeUpstreamRejected,
		Message:  message,
		Category: "upstream",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewBulkPartialFailureError は一括操作の一部失敗エラーを生成する。
// 成功分は外部サービス側で適用済みでありロールバックは行わない。
func NewBulkPartialFailureError(succeeded, failed int) *APIError {
	return &APIError{
		Code:     ErrCodeBulkPartialFailure,
		Message:  fmt.Sprintf("一括操作が一部失敗しました: 成功 %d件 / 失敗 %d件", succeeded, failed),
		Category: "upstream",
		Action:   "失敗した項目のみ再度お試しください。成功分は既に適用されています。",
	}
}

// NewInvalidAnalyticsTypeError は無効な分析タイプエラーを生成する。
func NewInvalidAnalyticsTypeError(analyticsType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnalytics,
		Message:  fmt.Sprintf("無効な分析タイプです: %s", analyticsType),
		Category: "validation",
		Action:   "engagement、traffic、conversions、performance のいずれかを指定してください。",
	}
}
