package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

const defaultRunsPerPage = 10

// RunServiceInterface はIngestRunHandlerが依存するサービスのインターフェース。
type RunServiceInterface interface {
	ListRecentRuns(ctx context.Context, limit int) ([]*model.IngestRun, error)
}

// IngestRunHandler は取り込み実行履歴APIのハンドラ。
type IngestRunHandler struct {
	service RunServiceInterface
}

// NewIngestRunHandler はIngestRunHandlerの新しいインスタンスを生成する。
func NewIngestRunHandler(service RunServiceInterface) *IngestRunHandler {
	return &IngestRunHandler{service: service}
}

// ingestRunResponse は実行レコード1件分のレスポンス。
type ingestRunResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	Unchanged    int       `json:"unchanged"`
	Failed       int       `json:"failed"`
	NotFound     int       `json:"not_found"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ingestRunListResponse は実行履歴APIのレスポンス。
type ingestRunListResponse struct {
	Runs []ingestRunResponse `json:"runs"`
}

// ListRuns は直近の取り込み実行履歴を返す。
// GET /api/ingest-runs?limit=
func (h *IngestRunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultRunsPerPage)

	runs, err := h.service.ListRecentRuns(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := ingestRunListResponse{Runs: make([]ingestRunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, ingestRunResponse{
			ID:           run.ID,
			Status:       string(run.Status),
			Created:      run.Created,
			Updated:      run.Updated,
			Unchanged:    run.Unchanged,
			Failed:       run.Failed,
			NotFound:     run.NotFound,
			ErrorMessage: run.ErrorMessage,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
