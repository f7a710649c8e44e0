// Package repository はデータ永続化のインターフェースを定義する。
// このアプリケーションが永続化するのはオペレーターのセッションと
// ユーザープロフィールのキャッシュのみで、プロダクト・コメント等の
// ドメインデータは外部Webhookサービスが所有する。
package repository

import (
	"context"

	"github.com/hitoshi/redditreach/internal/model"
)

// UserRepository はユーザープロフィールキャッシュの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はログイン時に返されたプロフィールを保存する。
	// 既存IDの場合はusername/emailを上書きする冪等な操作。
	Upsert(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションへの書き込みはauthサービスのみが行う（単一ライター）。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
