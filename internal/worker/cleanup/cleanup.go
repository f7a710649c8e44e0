// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// expires_atを過ぎたセッション行を定期バッチで削除し、メトリクスを更新する。
// セッション検証はFindByIDの時点で期限切れを除外しているため、このジョブは
// ストレージの肥大化防止とメトリクスの正確性のために存在する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ActiveCounter は有効なセッション数の取得を抽象化するインターフェース。
// repository.PostgresSessionRepoが実装する。
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// MetricsRecorder はクリーンアップジョブが更新するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordSessionsCleaned(count int)
	SetActiveSessions(count int)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db      Executor
	counter ActiveCounter
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
// counterとmetricsはnilを許容する（メトリクス更新をスキップ）。
func NewCleanupJob(db Executor, counter ActiveCounter, metrics MetricsRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:      db,
		counter: counter,
		metrics: metrics,
		logger:  logger,
	}
}

// Run は期限切れセッションを削除し、メトリクスを更新する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM sessions WHERE expires_at <= now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsCleaned(int(deletedCount))
		j.updateActiveGauge(ctx)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// updateActiveGauge は有効セッション数のゲージを更新する。
// カウント失敗はログに記録するのみで、ジョブ自体は失敗させない。
func (j *CleanupJob) updateActiveGauge(ctx context.Context) {
	if j.counter == nil {
		return
	}
	count, err := j.counter.CountActive(ctx)
	if err != nil {
		j.logger.Error("有効セッション数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	j.metrics.SetActiveSessions(count)
}
