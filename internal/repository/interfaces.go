// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// PatchRepository はパッチデータの永続化インターフェース。
// versionをキーとした検索とCRUD操作を提供する。
type PatchRepository interface {
	// FindByVersion は指定バージョンのパッチを取得する。見つからない場合はnilを返す。
	FindByVersion(ctx context.Context, version string) (*model.Patch, error)

	// Create は新規パッチを作成する。versionの一意制約に違反する場合はエラーを返す。
	Create(ctx context.Context, patch *model.Patch) error

	// Update は既存パッチを上書き更新する。履歴は保持しない。
	Update(ctx context.Context, patch *model.Patch) error

	// List はパッチ一覧をupdated_at降順で返す。
	List(ctx context.Context, limit, offset int) ([]*model.Patch, error)

	// Count はパッチの総数を返す。
	Count(ctx context.Context) (int, error)
}

// PatchSectionRepository はパッチセクションの永続化インターフェース。
type PatchSectionRepository interface {
	// ReplaceByPatchID は指定パッチのセクションを同一トランザクションで全件入れ替える。
	// 既存セクションを削除してから新しいセクションを挿入する。
	ReplaceByPatchID(ctx context.Context, patchID string, sections []model.PatchSection) error

	// ListByPatchID は指定パッチのセクションをorder昇順で返す。
	// categoryまたはsizeが空でない場合は絞り込みを行う。
	ListByPatchID(ctx context.Context, patchID string, category model.SectionCategory, size model.SectionSize) ([]model.PatchSection, error)
}

// IngestRunRepository は取り込み実行の監査レコードの永続化インターフェース。
type IngestRunRepository interface {
	// Create は実行レコードを作成する。
	Create(ctx context.Context, run *model.IngestRun) error

	// ListRecent は実行レコードをstarted_at降順でlimit件返す。
	ListRecent(ctx context.Context, limit int) ([]*model.IngestRun, error)

	// DeleteOlderThan は指定時刻より前に開始された実行レコードを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
