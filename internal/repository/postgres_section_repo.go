package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/patchvote/internal/model"
)

// PostgresPatchSectionRepo はPostgreSQLを使用したパッチセクションリポジトリ。
type PostgresPatchSectionRepo struct {
	db *sql.DB
}

// NewPostgresPatchSectionRepo はPostgresPatchSectionRepoを生成する。
func NewPostgresPatchSectionRepo(db *sql.DB) *PostgresPatchSectionRepo {
	return &PostgresPatchSectionRepo{db: db}
}

// ReplaceByPatchID は指定パッチのセクションを同一トランザクションで全件入れ替える。
// 既存セクションを削除してから新しいセクションを挿入する。
// 途中で失敗した場合はロールバックされ、既存セクションは維持される。
func (r *PostgresPatchSectionRepo) ReplaceByPatchID(ctx context.Context, patchID string, sections []model.PatchSection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM patch_sections WHERE patch_id = $1`, patchID,
	); err != nil {
		return fmt.Errorf("既存セクションの削除に失敗しました: %w", err)
	}

	for _, section := range sections {
		linesJSON, err := json.Marshal(section.Lines)
		if err != nil {
			return fmt.Errorf("セクション行のJSON変換に失敗しました: %w", err)
		}

		var unitTier sql.NullInt16
		if section.UnitTier != nil {
			unitTier = sql.NullInt16{Int16: int16(*section.UnitTier), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO patch_sections (id, patch_id, category, size, h2, h4, "order", text, lines, unit_tier)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			section.ID, patchID, section.Category, section.Size,
			section.H2, section.H4, section.Order, section.Text,
			linesJSON, unitTier,
		); err != nil {
			return fmt.Errorf("セクションの挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// ListByPatchID は指定パッチのセクションをorder昇順で返す。
// categoryまたはsizeが空でない場合は絞り込みを行う。
func (r *PostgresPatchSectionRepo) ListByPatchID(
	ctx context.Context,
	patchID string,
	category model.SectionCategory,
	size model.SectionSize,
) ([]model.PatchSection, error) {
	query := `SELECT id, patch_id, category, size, h2, h4, "order", text, lines, unit_tier
	          FROM patch_sections WHERE patch_id = $1`
	args := []interface{}{patchID}
	argIndex := 2

	if category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, category)
		argIndex++
	}
	if size != "" {
		query += fmt.Sprintf(" AND size = $%d", argIndex)
		args = append(args, size)
		argIndex++
	}

	query += ` ORDER BY "order" ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("セクション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sections []model.PatchSection
	for rows.Next() {
		var section model.PatchSection
		var linesJSON []byte
		var unitTier sql.NullInt16

		if err := rows.Scan(
			&section.ID, &section.PatchID, &section.Category, &section.Size,
			&section.H2, &section.H4, &section.Order, &section.Text,
			&linesJSON, &unitTier,
		); err != nil {
			return nil, fmt.Errorf("セクション行のスキャンに失敗しました: %w", err)
		}

		if len(linesJSON) > 0 {
			if err := json.Unmarshal(linesJSON, &section.Lines); err != nil {
				return nil, fmt.Errorf("セクション行のJSONパースに失敗しました: %w", err)
			}
		}
		if unitTier.Valid {
			tier := int(unitTier.Int16)
			section.UnitTier = &tier
		}

		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("セクション一覧の読み取りに失敗しました: %w", err)
	}

	return sections, nil
}
