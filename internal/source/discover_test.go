package source

import (
	"testing"

	"github.com/hitoshi/patchvote/internal/model"
)

func TestParsePatchLinksFromHTML(t *testing.T) {
	htmlBody := []byte(`<!DOCTYPE html>
<html><body>
<a href="/en-us/news/game-updates/teamfight-tactics-patch-16-4/">Patch 16.4</a>
<a href="/en-us/news/game-updates/teamfight-tactics-patch-16-3-notes/">Patch 16.3 notes</a>
<a href="https://teamfighttactics.leagueoflegends.com/en-us/news/game-updates/teamfight-tactics-patch-15-12/">Patch 15.12</a>
<a href="/en-us/news/game-updates/teamfight-tactics-patch-16-4/">duplicate</a>
<a href="/en-us/news/dev/some-dev-blog/">Dev blog</a>
<a>no href</a>
</body></html>`)

	got := ParsePatchLinksFromHTML(htmlBody, "https://teamfighttactics.leagueoflegends.com/en-us/news/game-updates/")

	if len(got) != 3 {
		t.Fatalf("ParsePatchLinksFromHTML returned %d descriptors, want 3: %+v", len(got), got)
	}

	wantVersions := []string{"16.4", "16.3", "15.12"}
	for i, want := range wantVersions {
		if got[i].Version != want {
			t.Errorf("descriptor[%d].Version = %q, want %q", i, got[i].Version, want)
		}
	}

	// 相対URLが絶対URLに解決される
	wantURL := "https://teamfighttactics.leagueoflegends.com/en-us/news/game-updates/teamfight-tactics-patch-16-4/"
	if got[0].URL != wantURL {
		t.Errorf("descriptor[0].URL = %q, want %q", got[0].URL, wantURL)
	}
}

func TestParsePatchLinksFromHTML_EmptyBody(t *testing.T) {
	got := ParsePatchLinksFromHTML([]byte("<html><body><p>no links</p></body></html>"), "https://example.com/")
	if len(got) != 0 {
		t.Errorf("expected no descriptors, got %+v", got)
	}
}

func TestVersionFromSlug(t *testing.T) {
	tests := []struct {
		href        string
		wantVersion string
		wantOK      bool
	}{
		{"/news/game-updates/teamfight-tactics-patch-16-4/", "16.4", true},
		{"/news/game-updates/teamfight-tactics-patch-15-5-notes/", "15.5", true},
		{"teamfight-tactics-patch-14-12", "14.12", true},
		{"/news/game-updates/league-patch-16-4/", "", false},
		{"/news/dev/roadmap/", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			version, ok := versionFromSlug(tt.href)
			if ok != tt.wantOK || version != tt.wantVersion {
				t.Errorf("versionFromSlug(%q) = (%q, %v), want (%q, %v)",
					tt.href, version, ok, tt.wantVersion, tt.wantOK)
			}
		})
	}
}

func TestFilterVersionRange(t *testing.T) {
	descriptors := []model.PatchDescriptor{
		{Version: "13.24"}, // major下限未満
		{Version: "14.1"},
		{Version: "16.24"},
		{Version: "16.25"}, // minor上限超過
		{Version: "17.1"},  // major上限超過
		{Version: "xyz"},   // 解釈不能
	}

	got := filterVersionRange(descriptors, 14, 16, 24)

	if len(got) != 2 {
		t.Fatalf("filterVersionRange returned %d descriptors, want 2: %+v", len(got), got)
	}
	if got[0].Version != "14.1" || got[1].Version != "16.24" {
		t.Errorf("filtered versions = [%s %s], want [14.1 16.24]", got[0].Version, got[1].Version)
	}
}

func TestSortVersionsDesc(t *testing.T) {
	descriptors := []model.PatchDescriptor{
		{Version: "14.12"},
		{Version: "16.4"},
		{Version: "16.10"},
		{Version: "15.1"},
	}

	sortVersionsDesc(descriptors)

	want := []string{"16.10", "16.4", "15.1", "14.12"}
	for i, w := range want {
		if descriptors[i].Version != w {
			t.Errorf("sorted[%d] = %s, want %s", i, descriptors[i].Version, w)
		}
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{404, FetchResultNotFound},
		{410, FetchResultNotFound},
		{429, FetchResultUnavailable},
		{500, FetchResultUnavailable},
		{502, FetchResultUnavailable},
		{503, FetchResultUnavailable},
		{301, FetchResultUnknown},
		{403, FetchResultUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
