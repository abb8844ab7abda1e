package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/model"
)

// minDetailBodySize はパッチノートページとして受理する最小ボディサイズ（バイト）。
// 空のSPAシェルやエラーページを実コンテンツと誤認しないための下限。
const minDetailBodySize = 800

// RiotHTMLSource はゲーム公式サイトのHTMLページからパッチノートを取得する。
// インデックスページのリンク走査でバージョンを発見し、
// 個別パッチはスラグ候補を順に試して取得する。
type RiotHTMLSource struct {
	baseURL     string
	versions    []string // 明示指定時はインデックス探索をスキップ
	majorMin    int
	majorMax    int
	minorMax    int
	ssrfGuard   SSRFValidator
	limiter     *rate.Limiter
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
}

// RiotHTMLSourceOptions はRiotHTMLSourceの生成パラメータ。
type RiotHTMLSourceOptions struct {
	BaseURL     string
	Versions    []string
	MajorMin    int
	MajorMax    int
	MinorMax    int
	SSRFGuard   SSRFValidator
	Limiter     *rate.Limiter
	Collector   metrics.MetricsCollector
	Logger      *slog.Logger
	Timeout     time.Duration
	MaxBodySize int64
	UserAgent   string
}

// NewRiotHTMLSource はRiotHTMLSourceの新しいインスタンスを生成する。
func NewRiotHTMLSource(opts RiotHTMLSourceOptions) *RiotHTMLSource {
	return &RiotHTMLSource{
		baseURL:     opts.BaseURL,
		versions:    opts.Versions,
		majorMin:    opts.MajorMin,
		majorMax:    opts.MajorMax,
		minorMax:    opts.MinorMax,
		ssrfGuard:   opts.SSRFGuard,
		limiter:     opts.Limiter,
		collector:   opts.Collector,
		logger:      opts.Logger,
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		userAgent:   opts.UserAgent,
	}
}

// ListAvailableVersions は取得可能なパッチバージョンの一覧を返す。
// 明示的なバージョンリストが設定されている場合はインデックス探索を行わず、
// そのリストをそのまま降順ソートして返す。
func (s *RiotHTMLSource) ListAvailableVersions(ctx context.Context) ([]model.PatchDescriptor, error) {
	if len(s.versions) > 0 {
		descriptors := make([]model.PatchDescriptor, 0, len(s.versions))
		for _, v := range s.versions {
			descriptors = append(descriptors, model.PatchDescriptor{Version: v})
		}
		sortVersionsDesc(descriptors)
		s.logger.Info("明示指定されたバージョンリストを使用します",
			slog.Int("count", len(descriptors)),
		)
		return descriptors, nil
	}

	body, err := s.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := ParsePatchLinksFromHTML(body, s.baseURL)
	if len(descriptors) == 0 {
		s.logger.Error("インデックスページからパッチリンクを検出できませんでした",
			slog.String("url", s.baseURL),
			slog.Int("body_size", len(body)),
		)
		return nil, model.NewSourceFormatError("インデックスページにパッチリンクが見つかりません")
	}

	descriptors = filterVersionRange(descriptors, s.majorMin, s.majorMax, s.minorMax)
	sortVersionsDesc(descriptors)

	s.logger.Info("インデックスページからバージョンを発見しました",
		slog.String("url", s.baseURL),
		slog.Int("count", len(descriptors)),
	)
	return descriptors, nil
}

// fetchIndex はインデックスページを取得してボディを返す。
func (s *RiotHTMLSource) fetchIndex(ctx context.Context) ([]byte, error) {
	body, result, err := s.fetch(ctx, s.baseURL)
	if err != nil {
		return nil, model.NewSourceUnavailableError("インデックスページの取得に失敗", err)
	}
	if result != FetchResultOK {
		return nil, model.NewSourceUnavailableError(
			fmt.Sprintf("インデックスページが取得できません (url=%s)", s.baseURL), nil)
	}
	return body, nil
}

// GetPatchDetail は1バージョン分のパッチノートHTMLを取得する。
// URL候補を順に試し、200かつボディが下限サイズを超えた最初の候補を採用する。
// 404/410および小さすぎるボディは次の候補に進み、
// 全候補で空振りした場合はPATCH_NOT_FOUNDを返す。
func (s *RiotHTMLSource) GetPatchDetail(ctx context.Context, desc model.PatchDescriptor) (*model.RawPatch, error) {
	candidates := s.candidateURLs(desc)

	for _, candidate := range candidates {
		body, result, err := s.fetch(ctx, candidate)
		if err != nil {
			return nil, model.NewSourceUnavailableError(
				fmt.Sprintf("パッチノートの取得に失敗 (version=%s)", desc.Version), err)
		}

		switch result {
		case FetchResultOK:
			if len(body) <= minDetailBodySize {
				s.logger.Warn("パッチノートのボディが小さすぎるため次の候補を試します",
					slog.String("version", desc.Version),
					slog.String("url", candidate),
					slog.Int("body_size", len(body)),
				)
				continue
			}
			return &model.RawPatch{
				Descriptor: desc,
				SourceURL:  candidate,
				HTML:       string(body),
			}, nil

		case FetchResultNotFound:
			s.logger.Info("URL候補が見つかりませんでした",
				slog.String("version", desc.Version),
				slog.String("url", candidate),
			)
			continue

		case FetchResultUnavailable:
			return nil, model.NewSourceUnavailableError(
				fmt.Sprintf("パッチノートが一時的に取得できません (version=%s url=%s)", desc.Version, candidate), nil)

		default:
			s.logger.Warn("予期しないHTTPステータスのため次の候補を試します",
				slog.String("version", desc.Version),
				slog.String("url", candidate),
			)
			continue
		}
	}

	return nil, model.NewPatchNotFoundError(desc.Version)
}

// candidateURLs はバージョンに対するURL候補を組み立てる。
// インデックス由来のURLがあればそれを先頭に、
// スラグ規約の2パターン（"-notes"あり/なし）を続ける。
func (s *RiotHTMLSource) candidateURLs(desc model.PatchDescriptor) []string {
	var candidates []string
	seen := make(map[string]bool)

	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		candidates = append(candidates, u)
	}

	add(desc.URL)

	major, minor, ok := versionKey(desc.Version)
	if ok {
		base := strings.TrimSuffix(s.baseURL, "/")
		add(fmt.Sprintf("%s/teamfight-tactics-patch-%d-%d/", base, major, minor))
		add(fmt.Sprintf("%s/teamfight-tactics-patch-%d-%d-notes/", base, major, minor))
	}

	return candidates
}

// fetch はレートリミッタとSSRF防止を通して1 URLを取得する。
// ネットワークエラーはerrで返し、HTTPステータスはresultに分類して返す。
func (s *RiotHTMLSource) fetch(ctx context.Context, rawURL string) ([]byte, FetchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, FetchResultUnknown, fmt.Errorf("レートリミッタ待機に失敗: %w", err)
	}

	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, FetchResultUnknown, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, FetchResultUnknown, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, FetchResultUnknown, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	s.collector.RecordHTTPStatus(resp.StatusCode)

	result := ClassifyHTTPStatus(resp.StatusCode)
	if result != FetchResultOK {
		return nil, result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, FetchResultUnknown, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	s.logger.Debug("フェッチ完了",
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("body_size", len(body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return body, FetchResultOK, nil
}
