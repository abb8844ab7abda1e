// Package cleanup は取り込み実行レコードの自動削除ジョブを提供する。
// 保持期間を超過したingest_runsを日次バッチで削除する。
// パッチ本体（patches / patch_sections）はこのジョブの対象外であり、
// 取り込みサブシステムがパッチを削除することはない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/patchvote/internal/repository"
)

// defaultRetentionDays は実行レコードのデフォルト保持日数。
const defaultRetentionDays = 14

// CleanupJob は保持期間を超過した取り込み実行レコードの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	runRepo       repository.IngestRunRepository
	logger        *slog.Logger
	RetentionDays int // 実行レコードの保持日数
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0以下の場合はデフォルト値を使用する。
func NewCleanupJob(runRepo repository.IngestRunRepository, logger *slog.Logger, retentionDays int) *CleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &CleanupJob{
		runRepo:       runRepo,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過した実行レコードを削除する。
// started_atがRetentionDays日前より古いレコードが対象。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	before := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.runRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		j.logger.Error("実行レコードクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("実行レコードクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("実行レコードクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// StartDaily は24時間間隔でクリーンアップジョブを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) StartDaily(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Int("retention_days", j.RetentionDays),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
