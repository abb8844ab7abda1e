package patch

import (
	"context"
	"fmt"

	"github.com/hitoshi/patchvote/internal/model"
	"github.com/hitoshi/patchvote/internal/repository"
)

// RunService は取り込み実行の監査レコードの読み取りサービス。
type RunService struct {
	runRepo repository.IngestRunRepository
}

// NewRunService はRunServiceの新しいインスタンスを生成する。
func NewRunService(runRepo repository.IngestRunRepository) *RunService {
	return &RunService{runRepo: runRepo}
}

// ListRecentRuns は直近の実行レコードを開始時刻降順で返す。
func (s *RunService) ListRecentRuns(ctx context.Context, limit int) ([]*model.IngestRun, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	runs, err := s.runRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("実行レコード一覧の取得に失敗: %w", err)
	}
	return runs, nil
}
