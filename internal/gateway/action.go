// Package gateway は外部Webhookサービスへの唯一の出口を提供する。
// 全ドメイン操作は単一エンドポイントへのPOSTに多重化され、リクエスト
// ボディの action フィールドがサーバー側の振る舞いを選択する。
package gateway

import (
	"encoding/json"
	"fmt"
)

// Action は外部Webhookサービスへ送信できる操作の閉じた集合を表す。
// 文字列ディスパッチの代わりに型付きバリアントとして定義し、
// シリアライズ境界はEncodeEnvelopeの1箇所に集約する。
// idempotentがfalseの操作はディスパッチごとに冪等性キーが付与され、
// リトライによる二重適用をサーバー側で排除できるようにする。
type Action interface {
	name() string
	idempotent() bool
}

// LoginAction は認証を行う。
type LoginAction struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (LoginAction) name() string     { return "login" }
func (LoginAction) idempotent() bool { return true }

// GetProductsAction はプロダクト一覧を取得する。
type GetProductsAction struct{}

func (GetProductsAction) name() string     { return "getProducts" }
func (GetProductsAction) idempotent() bool { return true }

// CreateProductAction はプロダクトを作成する。
type CreateProductAction struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Detail         string   `json:"detail"`
	Domain         string   `json:"domain"`
	TargetKeywords []string `json:"targetKeywords,omitempty"`
	Price          float64  `json:"price"`
}

func (CreateProductAction) name() string     { return "createProduct" }
func (CreateProductAction) idempotent() bool { return false }

// UpdateProductAction はプロダクトを更新する。
// 同一内容での再適用は同じ結果になるため冪等として扱う。
type UpdateProductAction struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Detail         string   `json:"detail"`
	Domain         string   `json:"domain"`
	TargetKeywords []string `json:"targetKeywords,omitempty"`
	Price          float64  `json:"price"`
}

func (UpdateProductAction) name() string     { return "updateProduct" }
func (UpdateProductAction) idempotent() bool { return true }

// DeleteProductAction はプロダクトを削除する。
type DeleteProductAction struct {
	ID string `json:"id"`
}

func (DeleteProductAction) name() string     { return "deleteProduct" }
func (DeleteProductAction) idempotent() bool { return true }

// GetPendingCommentsAction は承認待ちコメント一覧を取得する。
type GetPendingCommentsAction struct{}

func (GetPendingCommentsAction) name() string     { return "getPendingComments" }
func (GetPendingCommentsAction) idempotent() bool { return true }

// ApproveCommentAction はコメントを承認する。承認されたコメントは
// 外部サービスがRedditへ投稿するため、再送は安全ではない。
// EditedCommentがnilの場合はワイヤー上でJSON nullとして送信される。
type ApproveCommentAction struct {
	ID            string  `json:"id"`
	EditedComment *string `json:"editedComment"`
}

func (ApproveCommentAction) name() string     { return "approveComment" }
func (ApproveCommentAction) idempotent() bool { return false }

// RejectCommentAction はコメントを却下する。
type RejectCommentAction struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (RejectCommentAction) name() string     { return "rejectComment" }
func (RejectCommentAction) idempotent() bool { return false }

// GetAnalyticsAction は分析メトリクスを取得する。
// Typeは engagement / traffic / conversions / performance のいずれか
// （検証は呼び出し側のanalyticsサービスが行う）。
type GetAnalyticsAction struct {
	Type      string `json:"type"`
	DateRange string `json:"dateRange"`
}

func (GetAnalyticsAction) name() string     { return "getAnalytics" }
func (GetAnalyticsAction) idempotent() bool { return true }

// GetSettingsAction は設定を取得する。
type GetSettingsAction struct{}

func (GetSettingsAction) name() string     { return "getSettings" }
func (GetSettingsAction) idempotent() bool { return true }

// UpdateSettingsAction は設定を更新する。設定の実体は外部サービスが
// 所有するため、フィールドはエンベロープのトップレベルへそのまま
// 展開される不透明なペイロードとして扱う。
type UpdateSettingsAction map[string]any

func (UpdateSettingsAction) name() string     { return "updateSettings" }
func (UpdateSettingsAction) idempotent() bool { return true }

// EncodeEnvelope はActionをワイヤーフォーマットのJSONボディに変換する。
// ペイロードのフィールドをトップレベルに展開し、actionディスクリミネータ
// を注入する唯一のシリアライズ境界。
func EncodeEnvelope(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("アクションペイロードのシリアライズに失敗しました: %w", err)
	}

	envelope := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("アクションペイロードの展開に失敗しました: %w", err)
	}

	// actionフィールドはディスクリミネータ専用。ペイロード側での上書きは許可しない。
	if _, exists := envelope["action"]; exists {
		return nil, fmt.Errorf("ペイロードにactionフィールドを含めることはできません: %s", a.name())
	}

	nameJSON, err := json.Marshal(a.name())
	if err != nil {
		return nil, fmt.Errorf("アクション名のシリアライズに失敗しました: %w", err)
	}
	envelope["action"] = nameJSON

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("エンベロープのシリアライズに失敗しました: %w", err)
	}

	return body, nil
}
