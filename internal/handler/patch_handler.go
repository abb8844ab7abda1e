// Package handler はHTTP APIのハンドラを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/patchvote/internal/model"
)

const defaultPatchesPerPage = 20

// PatchServiceInterface はPatchHandlerが依存するサービスのインターフェース。
type PatchServiceInterface interface {
	ListPatches(ctx context.Context, limit, offset int) ([]*model.Patch, int, error)
	GetPatch(ctx context.Context, version string) (*model.Patch, error)
	ListSections(ctx context.Context, version string, category model.SectionCategory, size model.SectionSize) ([]model.PatchSection, error)
}

// PatchHandler はパッチ参照APIのハンドラ。
type PatchHandler struct {
	service PatchServiceInterface
}

// NewPatchHandler はPatchHandlerの新しいインスタンスを生成する。
func NewPatchHandler(service PatchServiceInterface) *PatchHandler {
	return &PatchHandler{service: service}
}

// patchSummaryResponse はパッチ一覧の1件分のレスポンス。本文は含まない。
type patchSummaryResponse struct {
	Version    string     `json:"version"`
	ReleasedAt *time.Time `json:"released_at"`
	SourceURL  string     `json:"source_url"`
	FetchedAt  time.Time  `json:"fetched_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// patchDetailResponse はパッチ詳細のレスポンス。サニタイズ済みHTMLを含む。
type patchDetailResponse struct {
	Version     string     `json:"version"`
	ReleasedAt  *time.Time `json:"released_at"`
	SourceURL   string     `json:"source_url"`
	SourceSlug  string     `json:"source_slug"`
	RawText     string     `json:"raw_text"`
	RawHTML     string     `json:"raw_html"`
	ContentHash string     `json:"content_hash"`
	FetchedAt   time.Time  `json:"fetched_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// patchListResponse はパッチ一覧APIのレスポンス。
type patchListResponse struct {
	Patches []patchSummaryResponse `json:"patches"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// sectionResponse はセクション1件分のレスポンス。
type sectionResponse struct {
	Category string   `json:"category"`
	Size     string   `json:"size"`
	H2       string   `json:"h2"`
	H4       string   `json:"h4"`
	Order    int      `json:"order"`
	Text     string   `json:"text"`
	Lines    []string `json:"lines"`
	UnitTier *int     `json:"unit_tier"`
}

// sectionListResponse はセクション一覧APIのレスポンス。
type sectionListResponse struct {
	Version  string            `json:"version"`
	Sections []sectionResponse `json:"sections"`
}

// ListPatches はパッチ一覧を返す。
// GET /api/patches?limit=&offset=
func (h *PatchHandler) ListPatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultPatchesPerPage)
	offset := parseIntParam(r, "offset", 0)

	patches, total, err := h.service.ListPatches(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := patchListResponse{
		Patches: make([]patchSummaryResponse, 0, len(patches)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, p := range patches {
		resp.Patches = append(resp.Patches, toPatchSummaryResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPatch はパッチ詳細を返す。
// GET /api/patches/:version
func (h *PatchHandler) GetPatch(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	p, err := h.service.GetPatch(r.Context(), version)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPatchDetailResponse(p))
}

// ListSections はパッチのセクション一覧を返す。
// GET /api/patches/:version/sections?category=&size=
func (h *PatchHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	category := model.SectionCategory(r.URL.Query().Get("category"))
	size := model.SectionSize(r.URL.Query().Get("size"))

	sections, err := h.service.ListSections(r.Context(), version, category, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := sectionListResponse{
		Version:  version,
		Sections: make([]sectionResponse, 0, len(sections)),
	}
	for _, s := range sections {
		resp.Sections = append(resp.Sections, sectionResponse{
			Category: string(s.Category),
			Size:     string(s.Size),
			H2:       s.H2,
			H4:       s.H4,
			Order:    s.Order,
			Text:     s.Text,
			Lines:    s.Lines,
			UnitTier: s.UnitTier,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toPatchSummaryResponse(p *model.Patch) patchSummaryResponse {
	return patchSummaryResponse{
		Version:    p.Version,
		ReleasedAt: p.ReleasedAt,
		SourceURL:  p.SourceURL,
		FetchedAt:  p.FetchedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toPatchDetailResponse(p *model.Patch) patchDetailResponse {
	return patchDetailResponse{
		Version:     p.Version,
		ReleasedAt:  p.ReleasedAt,
		SourceURL:   p.SourceURL,
		SourceSlug:  p.SourceSlug,
		RawText:     p.RawText,
		RawHTML:     p.RawHTML,
		ContentHash: p.ContentHash,
		FetchedAt:   p.FetchedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// parseIntParam はクエリパラメータを整数として解析する。不正な値はデフォルトに倒す。
func parseIntParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// apiErrorResponse は統一エラーレスポンスのJSON形式。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case "PATCH_VERSION_NOT_FOUND":
		return http.StatusNotFound
	case "INVALID_SECTION_FILTER":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
