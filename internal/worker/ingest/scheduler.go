// Package ingest はパッチ取り込みのバックグラウンド実行を提供する。
// 一定間隔のティッカーで取り込みパイプラインを起動する。
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// IngestRunner は取り込み実行のインターフェース。
type IngestRunner interface {
	// Run は取り込みを1回実行する。
	Run(ctx context.Context) (*model.IngestSummary, error)
}

// Scheduler は取り込みの定期実行を行う。
// パッチノートの公開は数週間間隔のため並列化は行わず、
// 1サイクルを逐次実行する。サイクル内の失敗は次のサイクルに影響しない。
type Scheduler struct {
	runner IngestRunner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner IngestRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで繰り返す。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle は1サイクル分の取り込みを実行する。
// ソースレベルの失敗もログに残すだけで、スケジューラ自体は停止しない。
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("取り込みサイクルが失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("failed", summary.Failed),
		slog.Int("not_found", summary.NotFound),
	)
}
