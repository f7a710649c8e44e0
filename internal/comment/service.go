// Package comment は承認待ちコメントのモデレーションを提供する。
// コメントの生成・採点・Redditへの投稿は外部Webhookサービスが行い、
// 本サービスは取得時のサニタイズと承認・却下のディスパッチを担う。
package comment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/model"
	"github.com/hitoshi/redditreach/internal/security"
)

// Dispatcher は外部Webhookサービスへのディスパッチに必要なインターフェース。
// gateway.Clientの部分集合として定義する。
type Dispatcher interface {
	Dispatch(ctx context.Context, token string, action gateway.Action) (*gateway.Response, error)
}

// Service はコメントモデレーションのサービス層。
type Service struct {
	dispatcher Dispatcher
	sanitizer  security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dispatcher Dispatcher, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		dispatcher: dispatcher,
		sanitizer:  sanitizer,
	}
}

// ListPending は承認待ちコメント一覧を取得する。
// HTMLを含むフィールドはブラウザへ返す前にサニタイズする。
func (s *Service) ListPending(ctx context.Context, token string) ([]model.PendingComment, error) {
	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.GetPendingCommentsAction{})
	if err != nil {
		return nil, err
	}

	var comments []model.PendingComment
	if err := json.Unmarshal(resp.Data, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode pending comments: %w", err)
	}

	for i := range comments {
		comments[i].PostContent = s.sanitizer.Sanitize(comments[i].PostContent)
		comments[i].GeneratedComment = s.sanitizer.Sanitize(comments[i].GeneratedComment)
		comments[i].AIAnalysis = s.sanitizer.Sanitize(comments[i].AIAnalysis)
	}

	return comments, nil
}

// Approve はコメントを承認する。editedCommentがnilでない場合は
// 編集済み本文で投稿される。承認は外部サービスがRedditへの投稿を
// 伴うため非冪等であり、リトライは冪等性キーで保護される。
func (s *Service) Approve(ctx context.Context, token, id string, editedComment *string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("comment ID is required")
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.ApproveCommentAction{
		ID:            id,
		EditedComment: editedComment,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Reject はコメントを却下する。
func (s *Service) Reject(ctx context.Context, token, id, reason string) (json.RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("comment ID is required")
	}

	resp, err := s.dispatcher.Dispatch(ctx, token, gateway.RejectCommentAction{
		ID:     id,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BulkApprove は複数コメントを並行に承認し、結果を集計する。
// 一部失敗時もロールバックは行わない（成功分は外部サービス側で
// 既に適用済みのため）。全件失敗・一部失敗の判定は呼び出し側が
// ResultのFailedを見て行う。
func (s *Service) BulkApprove(ctx context.Context, token string, ids []string) *model.BulkModerationResult {
	return s.bulkModerate(ctx, ids, func(id string) error {
		_, err := s.Approve(ctx, token, id, nil)
		return err
	})
}

// BulkReject は複数コメントを並行に却下し、結果を集計する。
func (s *Service) BulkReject(ctx context.Context, token string, ids []string, reason string) *model.BulkModerationResult {
	return s.bulkModerate(ctx, ids, func(id string) error {
		_, err := s.Reject(ctx, token, id, reason)
		return err
	})
}

// bulkModerate はIDごとに操作を並行実行し、成功・失敗件数を集計する。
func (s *Service) bulkModerate(ctx context.Context, ids []string, op func(id string) error) *model.BulkModerationResult {
	result := &model.BulkModerationResult{}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			err := op(id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, id)
				slog.Warn("bulk moderation item failed",
					slog.String("comment_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			result.Succeeded++
		}(id)
	}

	wg.Wait()

	// 失敗IDの順序を安定させる
	sort.Strings(result.FailedIDs)

	return result
}
