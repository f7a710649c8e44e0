// Package settings はダッシュボード設定の取得・更新を提供する。
// 設定の実体は外部Webhookサービスが所有するため、ペイロードは
// 不透明なまま往復させる。
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/redditreach/internal/gateway"
)

// Dispatcher は外部Webhookサービスへのディスパッチに必要なインターフェース。
// gateway.Clientの部分集合として定義する。
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
}

// Service は設定のサービス層。
type Service struct {
	dispatcher Dispatcher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dispatcher Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// Get は設定を取得する。
func (s *Service) Get(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.GetSettingsAction{})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Update は設定を更新する。settingsのフィールドはエンベロープの
// トップレベルへそのまま展開される。actionキーの混入はエンコード時に
// 拒否されるため、ここでは事前チェックのみ行う。
func (s *Service) Update(ctx context.Context, token string, settings map[string]any) (json.RawMessage, error) {
	if len(settings) == 0 {
		return nil, fmt.Errorf("settings payload is required")
	}
	if _, exists := settings["action"]; exists {
		return nil, fmt.Errorf("settings payload must not contain the action field")
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.UpdateSettingsAction(settings))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
