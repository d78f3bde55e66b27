// Package cleanup は古いダイジェストの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したダイジェストを日次バッチで削除する。
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

// DigestCleanupJob は保持期間を超過したダイジェストの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type DigestCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // ダイジェストの保持日数（デフォルト: 90）
}

// NewDigestCleanupJob は新しいDigestCleanupJobを生成する。
// retentionDaysが0以下の場合はデフォルトの90日を使用する。
func NewDigestCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *DigestCleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &DigestCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過したダイジェストを削除する。
// digest_dateがRetentionDays日前より古い行をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *DigestCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM digests WHERE digest_date < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("ダイジェストクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ダイジェストクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("ダイジェストクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// StartDaily は24時間間隔でクリーンアップジョブを定期実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *DigestCleanupJob) StartDaily(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの初回実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
