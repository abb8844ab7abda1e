package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// mockRunRepo はIngestRunRepositoryのテスト用モック。
type mockRunRepo struct {
	deleteErr error
	deleted   int64
	before    time.Time
	calls     int
}

func (m *mockRunRepo) Create(_ context.Context, _ *model.IngestRun) error {
	return nil
}

func (m *mockRunRepo) ListRecent(_ context.Context, _ int) ([]*model.IngestRun, error) {
	return nil, nil
}

func (m *mockRunRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	m.calls++
	m.before = before
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleted, nil
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil))
}

func TestCleanupJob_Run(t *testing.T) {
	repo := &mockRunRepo{deleted: 3}
	job := NewCleanupJob(repo, newTestLogger(), 14)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("DeleteOlderThan calls = %d, want 1", repo.calls)
	}

	// 保持期間ちょうどの境界: before は約14日前
	want := time.Now().AddDate(0, 0, -14)
	if diff := repo.before.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("before = %v, want about %v", repo.before, want)
	}
}

func TestCleanupJob_RunError(t *testing.T) {
	repo := &mockRunRepo{deleteErr: errors.New("db down")}
	job := NewCleanupJob(repo, newTestLogger(), 14)

	if err := job.Run(context.Background()); err == nil {
		t.Error("Run() = nil, want error")
	}
}

func TestCleanupJob_RunIdempotent(t *testing.T) {
	// 削除対象ゼロでもエラーにならない
	repo := &mockRunRepo{deleted: 0}
	job := NewCleanupJob(repo, newTestLogger(), 14)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil for zero deletions", err)
	}
}

func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	job := NewCleanupJob(&mockRunRepo{}, newTestLogger(), 0)
	if job.RetentionDays != defaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", job.RetentionDays, defaultRetentionDays)
	}
}
