package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/model"
)

// titleVersionPattern はフィードエントリのタイトルからバージョンを抽出するパターン。
// 例: "Teamfight Tactics patch 14.12 notes"
var titleVersionPattern = regexp.MustCompile(`(?i)patch\s+(\d+)\.(\d+)`)

// RSSSource はRSS/Atomフィードで公開されるパッチノートを取得する。
// フィードエントリのタイトルからバージョンを抽出し、
// エントリ本文をパッチノートコンテンツとして使用する。
// 本文が十分でない場合はエントリのリンク先ページを取得する。
type RSSSource struct {
	feedURL     string
	ssrfGuard   SSRFValidator
	limiter     *rate.Limiter
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	userAgent   string

	// contents は直近のListAvailableVersionsで得たバージョンごとのエントリ本文。
	contents map[string]string
}

// NewRSSSource はRSSSourceの新しいインスタンスを生成する。
func NewRSSSource(
	feedURL string,
	ssrfGuard SSRFValidator,
	limiter *rate.Limiter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	userAgent string,
) *RSSSource {
	return &RSSSource{
		feedURL:     feedURL,
		ssrfGuard:   ssrfGuard,
		limiter:     limiter,
		collector:   collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		userAgent:   userAgent,
		contents:    make(map[string]string),
	}
}

// ListAvailableVersions はフィードを取得してパッチバージョンの一覧を返す。
func (s *RSSSource) ListAvailableVersions(ctx context.Context) ([]model.PatchDescriptor, error) {
	body, err := s.fetchRaw(ctx, s.feedURL, "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if err != nil {
		return nil, model.NewSourceUnavailableError("フィードの取得に失敗", err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		s.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSourceFormatError(fmt.Sprintf("フィードを解釈できません: %s", err.Error()))
	}

	var descriptors []model.PatchDescriptor
	seen := make(map[string]bool)
	s.contents = make(map[string]string)

	for _, item := range parsed.Items {
		m := titleVersionPattern.FindStringSubmatch(item.Title)
		if m == nil {
			continue
		}
		version := m[1] + "." + m[2]
		if seen[version] {
			continue
		}
		seen[version] = true

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			publishedAt = &t
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		s.contents[version] = content

		descriptors = append(descriptors, model.PatchDescriptor{
			Version:     version,
			Title:       item.Title,
			URL:         item.Link,
			PublishedAt: publishedAt,
		})
	}

	if len(descriptors) == 0 {
		return nil, model.NewSourceFormatError("フィードにパッチエントリが見つかりません")
	}

	sortVersionsDesc(descriptors)
	s.logger.Info("フィードからバージョンを発見しました",
		slog.String("feed_url", s.feedURL),
		slog.Int("count", len(descriptors)),
	)
	return descriptors, nil
}

// GetPatchDetail は1バージョン分のパッチノートHTMLを返す。
// フィードエントリの本文が下限サイズを超えていればそれを使用し、
// 不足する場合はエントリのリンク先ページを取得する。
func (s *RSSSource) GetPatchDetail(ctx context.Context, desc model.PatchDescriptor) (*model.RawPatch, error) {
	if content, ok := s.contents[desc.Version]; ok && len(content) > minDetailBodySize {
		return &model.RawPatch{
			Descriptor: desc,
			SourceURL:  desc.URL,
			HTML:       content,
		}, nil
	}

	if desc.URL == "" {
		return nil, model.NewPatchNotFoundError(desc.Version)
	}

	body, err := s.fetchRaw(ctx, desc.URL, "text/html, application/xhtml+xml, */*")
	if err != nil {
		return nil, model.NewSourceUnavailableError(
			fmt.Sprintf("パッチノートの取得に失敗 (version=%s)", desc.Version), err)
	}
	if len(body) <= minDetailBodySize {
		return nil, model.NewPatchNotFoundError(desc.Version)
	}

	return &model.RawPatch{
		Descriptor: desc,
		SourceURL:  desc.URL,
		HTML:       string(body),
	}, nil
}

// fetchRaw はレートリミッタとSSRF防止を通して1 URLを取得する。
// 200以外のステータスはエラーとして扱う。
func (s *RSSSource) fetchRaw(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レートリミッタ待機に失敗: %w", err)
	}

	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	s.collector.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return body, nil
}
