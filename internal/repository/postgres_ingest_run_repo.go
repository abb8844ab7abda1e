package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// PostgresIngestRunRepo はPostgreSQLを使用した取り込み実行リポジトリ。
type PostgresIngestRunRepo struct {
	db *sql.DB
}

// NewPostgresIngestRunRepo はPostgresIngestRunRepoを生成する。
func NewPostgresIngestRunRepo(db *sql.DB) *PostgresIngestRunRepo {
	return &PostgresIngestRunRepo{db: db}
}

// Create は実行レコードを作成する。
func (r *PostgresIngestRunRepo) Create(ctx context.Context, run *model.IngestRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, status, created_count, updated_count, unchanged_count,
		                          failed_count, not_found_count, error_message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Status, run.Created, run.Updated, run.Unchanged,
		run.Failed, run.NotFound, run.ErrorMessage, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("実行レコードの挿入に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は実行レコードをstarted_at降順でlimit件返す。
func (r *PostgresIngestRunRepo) ListRecent(ctx context.Context, limit int) ([]*model.IngestRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, created_count, updated_count, unchanged_count,
		        failed_count, not_found_count, error_message, started_at, finished_at
		 FROM ingest_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("実行レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var runs []*model.IngestRun
	for rows.Next() {
		run := &model.IngestRun{}
		if err := rows.Scan(
			&run.ID, &run.Status, &run.Created, &run.Updated, &run.Unchanged,
			&run.Failed, &run.NotFound, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("実行レコード行のスキャンに失敗しました: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行レコード一覧の読み取りに失敗しました: %w", err)
	}

	return runs, nil
}

// DeleteOlderThan は指定時刻より前に開始された実行レコードを削除し、削除件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (r *PostgresIngestRunRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM ingest_runs WHERE started_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("実行レコードの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}
