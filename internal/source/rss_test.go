package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/model"
)

func newTestRSSSource(feedURL string) *RSSSource {
	var buf bytes.Buffer
	return NewRSSSource(
		feedURL,
		&mockSSRFGuard{},
		rate.NewLimiter(rate.Inf, 1),
		metrics.NopCollector{},
		newTestLogger(&buf),
		5*time.Second,
		5*1024*1024,
		"Patchvote/1.0 Patch Ingestor",
	)
}

func feedXML(entries string) string {
	return `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>TFT Patch Notes</title>
    <link>https://example.com/news/</link>` + entries + `
  </channel>
</rss>`
}

func TestRSSSource_ListAvailableVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML(`
    <item>
      <title>Teamfight Tactics patch 16.3 notes</title>
      <link>https://example.com/news/patch-16-3/</link>
      <pubDate>Wed, 13 Aug 2025 00:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Teamfight Tactics patch 16.4 notes</title>
      <link>https://example.com/news/patch-16-4/</link>
    </item>
    <item>
      <title>Dev update roadmap</title>
      <link>https://example.com/news/roadmap/</link>
    </item>`))
	}))
	defer server.Close()

	src := newTestRSSSource(server.URL + "/feed.xml")

	got, err := src.ListAvailableVersions(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableVersions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d descriptors, want 2: %+v", len(got), got)
	}
	if got[0].Version != "16.4" || got[1].Version != "16.3" {
		t.Errorf("versions = [%s %s], want [16.4 16.3]", got[0].Version, got[1].Version)
	}
	if got[1].PublishedAt == nil {
		t.Error("16.3 のPublishedAtがnil、pubDate由来の日時を期待")
	}
}

func TestRSSSource_ListAvailableVersions_InvalidXMLIsFormatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	src := newTestRSSSource(server.URL + "/feed.xml")

	_, err := src.ListAvailableVersions(context.Background())
	if !model.IsSourceFormatError(err) {
		t.Errorf("error = %v, want SOURCE_FORMAT_ERROR", err)
	}
}

func TestRSSSource_ListAvailableVersions_Unreachable(t *testing.T) {
	src := newTestRSSSource("http://127.0.0.1:1/feed.xml")

	_, err := src.ListAvailableVersions(context.Background())
	if !model.IsSourceUnavailable(err) {
		t.Errorf("error = %v, want SOURCE_UNAVAILABLE", err)
	}
}

func TestRSSSource_ListAvailableVersions_NoPatchEntriesIsFormatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(`
    <item>
      <title>Dev update roadmap</title>
      <link>https://example.com/news/roadmap/</link>
    </item>`))
	}))
	defer server.Close()

	src := newTestRSSSource(server.URL + "/feed.xml")

	_, err := src.ListAvailableVersions(context.Background())
	if !model.IsSourceFormatError(err) {
		t.Errorf("error = %v, want SOURCE_FORMAT_ERROR", err)
	}
}

func TestRSSSource_GetPatchDetail_UsesEntryContent(t *testing.T) {
	content := bigBody("16.4")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			t.Errorf("エントリ本文が十分な場合はリンク先を取得してはならない: %s", r.URL.Path)
		}
		fmt.Fprint(w, feedXML(`
    <item>
      <title>Teamfight Tactics patch 16.4 notes</title>
      <link>https://example.com/news/patch-16-4/</link>
      <description><![CDATA[`+content+`]]></description>
    </item>`))
	}))
	defer server.Close()

	src := newTestRSSSource(server.URL + "/feed.xml")

	descs, err := src.ListAvailableVersions(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableVersions() error = %v", err)
	}

	got, err := src.GetPatchDetail(context.Background(), descs[0])
	if err != nil {
		t.Fatalf("GetPatchDetail() error = %v", err)
	}
	if !strings.Contains(got.HTML, "Patch 16.4") {
		t.Errorf("HTML does not contain entry content")
	}
}

func TestRSSSource_GetPatchDetail_FallsBackToEntryLink(t *testing.T) {
	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(`
    <item>
      <title>Teamfight Tactics patch 16.4 notes</title>
      <link>`+server.URL+`/news/patch-16-4/</link>
      <description>short blurb</description>
    </item>`))
	})
	mux.HandleFunc("/news/patch-16-4/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, bigBody("16.4"))
	})

	src := newTestRSSSource(server.URL + "/feed.xml")

	descs, err := src.ListAvailableVersions(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableVersions() error = %v", err)
	}

	got, err := src.GetPatchDetail(context.Background(), descs[0])
	if err != nil {
		t.Fatalf("GetPatchDetail() error = %v", err)
	}
	if !strings.Contains(got.HTML, "Patch 16.4") {
		t.Errorf("HTML does not contain linked page content")
	}
}

func TestRSSSource_GetPatchDetail_NoContentNoLink(t *testing.T) {
	src := newTestRSSSource("http://127.0.0.1:1/feed.xml")

	_, err := src.GetPatchDetail(context.Background(), model.PatchDescriptor{Version: "16.4"})
	if !model.IsPatchNotFound(err) {
		t.Errorf("error = %v, want PATCH_NOT_FOUND", err)
	}
}
