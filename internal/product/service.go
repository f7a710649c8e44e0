// Package product はプロダクト管理のドメインロジックを提供する。
// プロダクトの実体は外部Webhookサービスが所有するため、本サービスは
// 入力バリデーションとディスパッチのみを担い、応答は不透明なまま返す。
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/model"
)

// Dispatcher は外部Webhookサービスへのディスパッチに必要なインターフェース。
// gateway.Clientの部分集合として定義する。
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
}

// Service はプロダクト管理のサービス層。
type Service struct {
	dispatcher Dispatcher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dispatcher Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// List はプロダクト一覧を取得する。
func (s *Service) List(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.GetProductsAction{})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create はプロダクトを作成する。バリデーション失敗時はネットワークに
// 到達せずAPIErrorを返す。
func (s *Service) Create(ctx context.Context, token string, input model.Product) (json.RawMessage, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.CreateProductAction{
		Name:           input.Name,
		Description:    input.Description,
		Detail:         input.Detail,
		Domain:         input.Domain,
		TargetKeywords: input.TargetKeywords,
		Price:          input.Price,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Update はプロダクトを更新する。
func (s *Service) Update(ctx context.Context, token, id string, input model.Product) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("product ID is required")
	}
	if err := Validate(input); err != nil {
		return nil, err
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.UpdateProductAction{
		ID:             id,
		Name:           input.Name,
		Description:    input.Description,
		Detail:         input.Detail,
		Domain:         input.Domain,
		TargetKeywords: input.TargetKeywords,
		Price:          input.Price,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Delete はプロダクトを削除する。
func (s *Service) Delete(ctx context.Context, token, id string) error {
	if id == "" {
		return fmt.Errorf("product ID is required")
	}

	_, err := s.dispatcher.Dispatch(ctx, token, gateway.DeleteProductAction{ID: id})
	return err
}

// Validate はプロダクト入力を検証する。
// フォームレベルの検証でありネットワークには到達しない。
func Validate(p model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.NewValidationError("name", "プロダクト名は必須です")
	}
	if strings.TrimSpace(p.Domain) == "" {
		return model.NewValidationError("domain", "ドメインは必須です")
	}
	if len([]rune(p.Description)) > model.ProductDescriptionMaxLen {
		return model.NewValidationError("description",
			fmt.Sprintf("説明は%d文字以内で入力してください", model.ProductDescriptionMaxLen))
	}
	if len([]rune(p.Detail)) > model.ProductDetailMaxLen {
		return model.NewValidationError("detail",
			fmt.Sprintf("詳細は%d文字以内で入力してください", model.ProductDetailMaxLen))
	}
	if p.Price < 0 || p.Price > model.ProductPriceMax {
		return model.NewValidationError("price",
			fmt.Sprintf("価格は0以上%d以下で入力してください", model.ProductPriceMax))
	}
	return nil
}
