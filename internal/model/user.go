// Package model はドメインモデルを定義する。
package model

import "time"

// User はダッシュボードを操作するオペレーターを表す。
// ユーザーの実体は外部Webhookサービス側にあり、ここではログイン時に
// 返されたプロフィールのキャッシュとして保持する。
type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はオペレーターのログインセッションを表す。
// Tokenは外部WebhookサービスへのBearerトークンで、セッションと同じ
// ライフサイクルを持つ。Tokenを持つセッションは必ずUserIDを持つ。
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
