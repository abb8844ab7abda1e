package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/model"
	"github.com/hitoshi/patchvote/internal/repository"
	"github.com/hitoshi/patchvote/internal/source"
)

// PatchParserService はパッチノートHTMLの解析のインターフェース。
type PatchParserService interface {
	Parse(raw *model.RawPatch) (*model.ParsedPatch, error)
}

// PatchUpserter はパッチのUPSERT処理のインターフェース。
type PatchUpserter interface {
	Upsert(ctx context.Context, parsed *model.ParsedPatch) (model.UpsertOutcome, error)
}

// Ingestor は取り込みパイプライン全体を調停する。
//
// 1回の実行でソースからバージョン一覧を取得し、各バージョンを
// 取得→解析→UPSERTの順に逐次処理する。バージョン単位の失敗は
// 記録して次のバージョンへ進み、実行自体は完走として扱う。
// ソースレベルの失敗（一覧取得不能・構造解釈不能）のみ実行を中断する。
type Ingestor struct {
	source    source.PatchSource
	parser    PatchParserService
	upsertSvc PatchUpserter
	runRepo   repository.IngestRunRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewIngestor はIngestorの新しいインスタンスを生成する。
func NewIngestor(
	src source.PatchSource,
	parser PatchParserService,
	upsertSvc PatchUpserter,
	runRepo repository.IngestRunRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		source:    src,
		parser:    parser,
		upsertSvc: upsertSvc,
		runRepo:   runRepo,
		collector: collector,
		logger:    logger,
	}
}

// Run は取り込みを1回実行する。
// 完走した場合はサマリーとnilを返す（バージョン単位の失敗を含んでいても成功）。
// ソースレベルの失敗で中断した場合はサマリーとエラーの両方を返す。
// どちらの場合もingest_runsに監査レコードを1件残す。
func (ing *Ingestor) Run(ctx context.Context) (*model.IngestSummary, error) {
	summary := &model.IngestSummary{StartedAt: time.Now()}

	ing.logger.Info("取り込みを開始します")

	descriptors, err := ing.source.ListAvailableVersions(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		ing.logger.Error("バージョン一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		ing.collector.RecordRunFailed(errorCode(err))
		ing.recordRun(ctx, summary, model.RunStatusFailed, err.Error())
		return summary, err
	}

	for _, desc := range descriptors {
		if ctx.Err() != nil {
			summary.FinishedAt = time.Now()
			ing.collector.RecordRunFailed("CANCELED")
			ing.recordRun(ctx, summary, model.RunStatusFailed, ctx.Err().Error())
			return summary, ctx.Err()
		}
		ing.processVersion(ctx, desc, summary)
	}

	summary.FinishedAt = time.Now()
	duration := summary.FinishedAt.Sub(summary.StartedAt)

	ing.logger.Info("取り込みが完了しました",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("failed", summary.Failed),
		slog.Int("not_found", summary.NotFound),
		slog.Float64("duration_sec", duration.Seconds()),
	)
	ing.collector.RecordRunCompleted(duration)
	ing.recordRun(ctx, summary, model.RunStatusCompleted, "")

	return summary, nil
}

// processVersion は1バージョン分の取得・解析・UPSERTを行い、結果をサマリーに反映する。
// 失敗してもエラーは返さず、次のバージョンの処理を妨げない。
func (ing *Ingestor) processVersion(ctx context.Context, desc model.PatchDescriptor, summary *model.IngestSummary) {
	raw, err := ing.source.GetPatchDetail(ctx, desc)
	if err != nil {
		if model.IsPatchNotFound(err) {
			ing.logger.Info("パッチが見つかりませんでした",
				slog.String("version", desc.Version),
			)
			summary.NotFound++
			ing.collector.RecordPatchNotFound()
			return
		}
		ing.recordItemFailure(summary, desc.Version, err)
		return
	}

	parsed, err := ing.parser.Parse(raw)
	if err != nil {
		ing.recordItemFailure(summary, desc.Version, err)
		return
	}

	outcome, err := ing.upsertSvc.Upsert(ctx, parsed)
	if err != nil {
		ing.recordItemFailure(summary, desc.Version, err)
		return
	}

	ing.collector.RecordOutcome(string(outcome))
	switch outcome {
	case model.OutcomeCreated:
		summary.Created++
		ing.collector.RecordSectionsStored(len(parsed.Sections))
	case model.OutcomeUpdated:
		summary.Updated++
		ing.collector.RecordSectionsStored(len(parsed.Sections))
	case model.OutcomeUnchanged:
		summary.Unchanged++
	}
}

// recordItemFailure はバージョン単位の失敗をサマリーとメトリクスに記録する。
func (ing *Ingestor) recordItemFailure(summary *model.IngestSummary, version string, err error) {
	ing.logger.Warn("バージョンの処理に失敗しました",
		slog.String("version", version),
		slog.String("code", errorCode(err)),
		slog.String("error", err.Error()),
	)
	summary.Failed++
	summary.Failures = append(summary.Failures, model.IngestFailure{
		Version: version,
		Reason:  err.Error(),
	})
	ing.collector.RecordItemFailure(errorCode(err))
}

// recordRun は実行の監査レコードをingest_runsに保存する。
// 監査保存自体の失敗は実行結果に影響させず、ログのみ残す。
func (ing *Ingestor) recordRun(ctx context.Context, summary *model.IngestSummary, status model.RunStatus, errorMessage string) {
	run := &model.IngestRun{
		ID:           uuid.New().String(),
		Status:       status,
		Created:      summary.Created,
		Updated:      summary.Updated,
		Unchanged:    summary.Unchanged,
		Failed:       summary.Failed,
		NotFound:     summary.NotFound,
		ErrorMessage: errorMessage,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
	}
	// 実行が中断された場合でも監査レコードは残す
	if err := ing.runRepo.Create(context.WithoutCancel(ctx), run); err != nil {
		ing.logger.Error("監査レコードの保存に失敗しました",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// errorCode はエラーからIngestErrorのコードを取り出す。
func errorCode(err error) string {
	var ingestErr *model.IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Code
	}
	return "UNKNOWN"
}
