package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/patchvote/internal/model"
)

// mockPatchService はPatchServiceInterfaceのテスト用モック。
type mockPatchService struct {
	patches  []*model.Patch
	total    int
	patch    *model.Patch
	sections []model.PatchSection
	err      error

	lastLimit    int
	lastOffset   int
	lastVersion  string
	lastCategory model.SectionCategory
	lastSize     model.SectionSize
}

func (m *mockPatchService) ListPatches(_ context.Context, limit, offset int) ([]*model.Patch, int, error) {
	m.lastLimit = limit
	m.lastOffset = offset
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.patches, m.total, nil
}

func (m *mockPatchService) GetPatch(_ context.Context, version string) (*model.Patch, error) {
	m.lastVersion = version
	if m.err != nil {
		return nil, m.err
	}
	return m.patch, nil
}

func (m *mockPatchService) ListSections(_ context.Context, version string, category model.SectionCategory, size model.SectionSize) ([]model.PatchSection, error) {
	m.lastVersion = version
	m.lastCategory = category
	m.lastSize = size
	if m.err != nil {
		return nil, m.err
	}
	return m.sections, nil
}

// newVersionRequest はchiのURLパラメータを設定したリクエストを生成する。
func newVersionRequest(method, target, version string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("version", version)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListPatches_ReturnsSummaries(t *testing.T) {
	released := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	svc := &mockPatchService{
		patches: []*model.Patch{
			{Version: "16.4", ReleasedAt: &released, SourceURL: "https://example.com/p-16-4/", RawHTML: "<p>body</p>"},
			{Version: "16.3", SourceURL: "https://example.com/p-16-3/"},
		},
		total: 12,
	}
	h := NewPatchHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/patches?limit=2&offset=4", nil)
	rec := httptest.NewRecorder()
	h.ListPatches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLimit != 2 || svc.lastOffset != 4 {
		t.Errorf("limit/offset = %d/%d, want 2/4", svc.lastLimit, svc.lastOffset)
	}

	var resp patchListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Patches) != 2 {
		t.Fatalf("len(patches) = %d, want 2", len(resp.Patches))
	}
	if resp.Total != 12 {
		t.Errorf("total = %d, want 12", resp.Total)
	}
	if resp.Patches[0].Version != "16.4" {
		t.Errorf("patches[0].version = %s, want 16.4", resp.Patches[0].Version)
	}
}

func TestListPatches_InvalidParamsFallBackToDefaults(t *testing.T) {
	svc := &mockPatchService{}
	h := NewPatchHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/patches?limit=abc&offset=xyz", nil)
	rec := httptest.NewRecorder()
	h.ListPatches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLimit != defaultPatchesPerPage || svc.lastOffset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", svc.lastLimit, svc.lastOffset, defaultPatchesPerPage)
	}
}

func TestGetPatch_ReturnsDetail(t *testing.T) {
	svc := &mockPatchService{
		patch: &model.Patch{
			Version:     "16.4",
			SourceSlug:  "teamfight-tactics-patch-16-4",
			RawHTML:     "<p>sanitized</p>",
			ContentHash: "abc123",
		},
	}
	h := NewPatchHandler(svc)

	rec := httptest.NewRecorder()
	h.GetPatch(rec, newVersionRequest(http.MethodGet, "/api/patches/16.4", "16.4"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp patchDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RawHTML != "<p>sanitized</p>" {
		t.Errorf("raw_html = %q", resp.RawHTML)
	}
	if resp.ContentHash != "abc123" {
		t.Errorf("content_hash = %q", resp.ContentHash)
	}
}

func TestGetPatch_NotFound(t *testing.T) {
	svc := &mockPatchService{err: model.NewPatchVersionNotFoundError("99.9")}
	h := NewPatchHandler(svc)

	rec := httptest.NewRecorder()
	h.GetPatch(rec, newVersionRequest(http.MethodGet, "/api/patches/99.9", "99.9"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "PATCH_VERSION_NOT_FOUND" {
		t.Errorf("code = %s, want PATCH_VERSION_NOT_FOUND", resp.Code)
	}
}

func TestListSections_PassesFilters(t *testing.T) {
	tier := 2
	svc := &mockPatchService{
		sections: []model.PatchSection{
			{Category: model.SectionCategoryChampions, Size: model.SectionSizeLarge, H4: "UNITS: TIER 2", Order: 1, UnitTier: &tier, Lines: []string{"a", "b"}},
		},
	}
	h := NewPatchHandler(svc)

	rec := httptest.NewRecorder()
	h.ListSections(rec, newVersionRequest(http.MethodGet, "/api/patches/16.4/sections?category=champions&size=large", "16.4"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastCategory != model.SectionCategoryChampions || svc.lastSize != model.SectionSizeLarge {
		t.Errorf("filters = (%s, %s), want (champions, large)", svc.lastCategory, svc.lastSize)
	}

	var resp sectionListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sections) != 1 {
		t.Fatalf("len(sections) = %d, want 1", len(resp.Sections))
	}
	if resp.Sections[0].UnitTier == nil || *resp.Sections[0].UnitTier != 2 {
		t.Errorf("unit_tier = %v, want 2", resp.Sections[0].UnitTier)
	}
}

func TestListSections_InvalidFilter(t *testing.T) {
	svc := &mockPatchService{err: model.NewInvalidSectionFilterError("weapons")}
	h := NewPatchHandler(svc)

	rec := httptest.NewRecorder()
	h.ListSections(rec, newVersionRequest(http.MethodGet, "/api/patches/16.4/sections?category=weapons", "16.4"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "INVALID_SECTION_FILTER" {
		t.Errorf("code = %s, want INVALID_SECTION_FILTER", resp.Code)
	}
}
