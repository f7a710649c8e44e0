// Package analytics は分析メトリクスの取得を提供する。
// メトリクスの集計は外部Webhookサービスが行い、本サービスは
// 分析タイプの検証とディスパッチのみを担う。
package analytics

import (
	"context"
	"encoding/json"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/model"
)

// validTypes は許可される分析タイプの閉じた集合。
var validTypes = map[string]struct{}{
	"engagement":  {},
	"traffic":     {},
	"conversions": {},
	"performance": {},
}

// Dispatcher は外部Webhookサービスへのディスパッチに必要なインターフェース。
// gateway.Clientの部分集合として定義する。
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
}

// Service は分析メトリクスのサービス層。
type Service struct {
	dispatcher Dispatcher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dispatcher Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// Get は指定タイプの分析メトリクスを取得する。
// 無効なタイプはネットワークに到達せずAPIErrorを返す。
// dateRangeが空の場合はデフォルト期間（30d）を使用する。
func (s *Service) Get(ctx context.Context, token, analyticsType, dateRange string) (json.RawMessage, error) {
	if _, ok := validTypes[analyticsType]; !ok {
		return nil, model.NewInvalidAnalyticsTypeError(analyticsType)
	}
	if dateRange == "" {
		dateRange = "30d"
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.GetAnalyticsAction{
		Type:      analyticsType,
		DateRange: dateRange,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// IsValidType は分析タイプが許可された集合に含まれるかを返す。
func IsValidType(analyticsType string) bool {
	_, ok := validTypes[analyticsType]
	return ok
}
