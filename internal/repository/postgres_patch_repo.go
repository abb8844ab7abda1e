package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// PostgresPatchRepo はPostgreSQLを使用したパッチリポジトリ。
type PostgresPatchRepo struct {
	db *sql.DB
}

// NewPostgresPatchRepo はPostgresPatchRepoを生成する。
func NewPostgresPatchRepo(db *sql.DB) *PostgresPatchRepo {
	return &PostgresPatchRepo{db: db}
}

const patchColumns = `id, version, released_at, source_url, source_slug,
	       raw_text, raw_html, content_hash, fetched_at, created_at, updated_at`

// scanPatch は1行分のパッチレコードをスキャンする。
func scanPatch(row interface {
	Scan(dest ...interface{}) error
}) (*model.Patch, error) {
	patch := &model.Patch{}
	var releasedAt sql.NullTime
	var sourceURL, sourceSlug, rawText, rawHTML, contentHash sql.NullString

	err := row.Scan(
		&patch.ID, &patch.Version, &releasedAt, &sourceURL, &sourceSlug,
		&rawText, &rawHTML, &contentHash,
		&patch.FetchedAt, &patch.CreatedAt, &patch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	patch.SourceURL = nullStringValue(sourceURL)
	patch.SourceSlug = nullStringValue(sourceSlug)
	patch.RawText = nullStringValue(rawText)
	patch.RawHTML = nullStringValue(rawHTML)
	patch.ContentHash = nullStringValue(contentHash)
	if releasedAt.Valid {
		t := releasedAt.Time
		patch.ReleasedAt = &t
	}

	return patch, nil
}

// FindByVersion は指定バージョンのパッチを取得する。見つからない場合はnilを返す。
func (r *PostgresPatchRepo) FindByVersion(ctx context.Context, version string) (*model.Patch, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+patchColumns+` FROM patches WHERE version = $1`,
		version,
	)

	patch, err := scanPatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("バージョンによるパッチの検索に失敗しました: %w", err)
	}

	return patch, nil
}

// Create は新規パッチを作成する。
func (r *PostgresPatchRepo) Create(ctx context.Context, patch *model.Patch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patches (id, version, released_at, source_url, source_slug,
		                      raw_text, raw_html, content_hash, fetched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		patch.ID, patch.Version, nullTimePtr(patch.ReleasedAt),
		patch.SourceURL, patch.SourceSlug,
		patch.RawText, patch.RawHTML, patch.ContentHash,
		patch.FetchedAt, patch.CreatedAt, patch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("パッチの挿入に失敗しました: %w", err)
	}
	return nil
}

// Update は既存パッチを上書き更新する。
func (r *PostgresPatchRepo) Update(ctx context.Context, patch *model.Patch) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE patches
		 SET released_at = $1, source_url = $2, source_slug = $3,
		     raw_text = $4, raw_html = $5, content_hash = $6,
		     fetched_at = $7, updated_at = $8
		 WHERE id = $9`,
		nullTimePtr(patch.ReleasedAt), patch.SourceURL, patch.SourceSlug,
		patch.RawText, patch.RawHTML, patch.ContentHash,
		patch.FetchedAt, patch.UpdatedAt, patch.ID,
	)
	if err != nil {
		return fmt.Errorf("パッチの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("更新対象のパッチが存在しません: %s", patch.ID)
	}
	return nil
}

// List はパッチ一覧をupdated_at降順で返す。
func (r *PostgresPatchRepo) List(ctx context.Context, limit, offset int) ([]*model.Patch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+patchColumns+` FROM patches
		 ORDER BY updated_at DESC, created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("パッチ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var patches []*model.Patch
	for rows.Next() {
		patch, err := scanPatch(rows)
		if err != nil {
			return nil, fmt.Errorf("パッチ行のスキャンに失敗しました: %w", err)
		}
		patches = append(patches, patch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("パッチ一覧の読み取りに失敗しました: %w", err)
	}

	return patches, nil
}

// Count はパッチの総数を返す。
func (r *PostgresPatchRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patches`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("パッチ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTimePtr は*time.TimeをINSERT/UPDATE用のsql.NullTimeに変換する。
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
