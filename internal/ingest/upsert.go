// Package ingest はパッチノートの取り込みパイプラインを提供する。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/patchvote/internal/model"
	"github.com/hitoshi/patchvote/internal/repository"
	"github.com/hitoshi/patchvote/internal/security"
)

// PatchUpsertService はパッチの同一性判定とUPSERT処理を提供する。
// バージョンをキーに既存パッチを検索し、コンテンツハッシュの比較で
// created / updated / unchanged のいずれかに分類する。
type PatchUpsertService struct {
	patchRepo   repository.PatchRepository
	sectionRepo repository.PatchSectionRepository
	sanitizer   security.ContentSanitizerService
}

// NewPatchUpsertService はPatchUpsertServiceの新しいインスタンスを生成する。
func NewPatchUpsertService(
	patchRepo repository.PatchRepository,
	sectionRepo repository.PatchSectionRepository,
	sanitizer security.ContentSanitizerService,
) *PatchUpsertService {
	return &PatchUpsertService{
		patchRepo:   patchRepo,
		sectionRepo: sectionRepo,
		sanitizer:   sanitizer,
	}
}

// Upsert はパース済みパッチをバージョンをキーにUPSERTする。
//
//   - 既存パッチがない場合は新規作成してOutcomeCreatedを返す
//   - コンテンツハッシュが異なる場合は上書き更新してOutcomeUpdatedを返す
//   - ハッシュが同一の場合は一切書き込まずOutcomeUnchangedを返す
//
// created / updated の場合はセクションも全削除のうえ再作成する。
// ストレージ層の失敗はSTORE_FAILEDとして返す。
func (s *PatchUpsertService) Upsert(ctx context.Context, parsed *model.ParsedPatch) (model.UpsertOutcome, error) {
	existing, err := s.patchRepo.FindByVersion(ctx, parsed.Version)
	if err != nil {
		return "", model.NewStoreError(parsed.Version, fmt.Errorf("既存パッチの検索に失敗: %w", err))
	}

	// 変更なし: 書き込みを一切行わない
	if existing != nil && existing.ContentHash == parsed.ContentHash {
		slog.Info("パッチは変更されていません",
			"version", parsed.Version,
			"content_hash", parsed.ContentHash,
		)
		return model.OutcomeUnchanged, nil
	}

	now := time.Now()
	sanitizedHTML := s.sanitizer.Sanitize(parsed.RawHTML)

	var patch *model.Patch
	var outcome model.UpsertOutcome

	if existing == nil {
		patch = &model.Patch{
			ID:          uuid.New().String(),
			Version:     parsed.Version,
			ReleasedAt:  parsed.ReleasedAt,
			SourceURL:   parsed.SourceURL,
			SourceSlug:  parsed.SourceSlug,
			RawText:     parsed.RawText,
			RawHTML:     sanitizedHTML,
			ContentHash: parsed.ContentHash,
			FetchedAt:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.patchRepo.Create(ctx, patch); err != nil {
			return "", model.NewStoreError(parsed.Version, fmt.Errorf("パッチの作成に失敗: %w", err))
		}
		outcome = model.OutcomeCreated
	} else {
		patch = existing
		patch.ReleasedAt = parsed.ReleasedAt
		patch.SourceURL = parsed.SourceURL
		patch.SourceSlug = parsed.SourceSlug
		patch.RawText = parsed.RawText
		patch.RawHTML = sanitizedHTML
		patch.ContentHash = parsed.ContentHash
		patch.FetchedAt = now
		patch.UpdatedAt = now
		if err := s.patchRepo.Update(ctx, patch); err != nil {
			return "", model.NewStoreError(parsed.Version, fmt.Errorf("パッチの更新に失敗: %w", err))
		}
		outcome = model.OutcomeUpdated
	}

	// セクションを全削除して再作成
	sections := buildSections(patch.ID, parsed.Sections)
	if err := s.sectionRepo.ReplaceByPatchID(ctx, patch.ID, sections); err != nil {
		return "", model.NewStoreError(parsed.Version, fmt.Errorf("セクションの置換に失敗: %w", err))
	}

	slog.Info("パッチをUPSERTしました",
		"version", parsed.Version,
		"outcome", string(outcome),
		"sections", len(sections),
	)
	return outcome, nil
}

// buildSections はパース済みセクションを永続化用のレコードに変換する。
func buildSections(patchID string, parsed []model.ParsedSection) []model.PatchSection {
	sections := make([]model.PatchSection, 0, len(parsed))
	for _, p := range parsed {
		sections = append(sections, model.PatchSection{
			ID:       uuid.New().String(),
			PatchID:  patchID,
			Category: p.Category,
			Size:     p.Size,
			H2:       p.H2,
			H4:       p.H4,
			Order:    p.Order,
			Text:     p.Text,
			Lines:    p.Lines,
			UnitTier: p.UnitTier,
		})
	}
	return sections
}
