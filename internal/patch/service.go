// Package patch はパッチデータの読み取りドメインロジックを提供する。
package patch

import (
	"context"
	"fmt"

	"github.com/hitoshi/patchvote/internal/model"
	"github.com/hitoshi/patchvote/internal/repository"
)

// validCategories はセクションフィルタとして許可するカテゴリ。
var validCategories = map[model.SectionCategory]bool{
	model.SectionCategoryOverview:  true,
	model.SectionCategoryChampions: true,
	model.SectionCategoryItems:     true,
	model.SectionCategoryTraits:    true,
	model.SectionCategoryAugments:  true,
	model.SectionCategoryOther:     true,
}

// validSizes はセクションフィルタとして許可する規模。
var validSizes = map[model.SectionSize]bool{
	model.SectionSizeAll:   true,
	model.SectionSizeLarge: true,
	model.SectionSizeSmall: true,
}

// Service はパッチの読み取りサービス。
// 取り込み済みパッチの一覧・詳細・セクションの参照を提供する。
type Service struct {
	patchRepo   repository.PatchRepository
	sectionRepo repository.PatchSectionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(patchRepo repository.PatchRepository, sectionRepo repository.PatchSectionRepository) *Service {
	return &Service{
		patchRepo:   patchRepo,
		sectionRepo: sectionRepo,
	}
}

// ListPatches はパッチ一覧を更新日時降順で返す。総数も併せて返す。
func (s *Service) ListPatches(ctx context.Context, limit, offset int) ([]*model.Patch, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	patches, err := s.patchRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("パッチ一覧の取得に失敗: %w", err)
	}
	total, err := s.patchRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("パッチ総数の取得に失敗: %w", err)
	}
	return patches, total, nil
}

// GetPatch は指定バージョンのパッチ詳細を返す。
// 未取り込みのバージョンはPATCH_VERSION_NOT_FOUNDを返す。
func (s *Service) GetPatch(ctx context.Context, version string) (*model.Patch, error) {
	p, err := s.patchRepo.FindByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("パッチの取得に失敗: %w", err)
	}
	if p == nil {
		return nil, model.NewPatchVersionNotFoundError(version)
	}
	return p, nil
}

// ListSections は指定バージョンのセクションをorder昇順で返す。
// category/sizeが空でない場合は検証のうえ絞り込む。
func (s *Service) ListSections(ctx context.Context, version string, category model.SectionCategory, size model.SectionSize) ([]model.PatchSection, error) {
	if category != "" && !validCategories[category] {
		return nil, model.NewInvalidSectionFilterError(string(category))
	}
	if size != "" && !validSizes[size] {
		return nil, model.NewInvalidSectionFilterError(string(size))
	}

	p, err := s.patchRepo.FindByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("パッチの取得に失敗: %w", err)
	}
	if p == nil {
		return nil, model.NewPatchVersionNotFoundError(version)
	}

	sections, err := s.sectionRepo.ListByPatchID(ctx, p.ID, category, size)
	if err != nil {
		return nil, fmt.Errorf("セクション一覧の取得に失敗: %w", err)
	}
	return sections, nil
}
