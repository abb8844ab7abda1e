// Package parser はパッチノートHTMLの解析を提供する。
//
// 外部ソースから取得した生HTMLからパッチノート本体のコンテナを特定し、
// テキスト描画、コンテンツハッシュ計算、セクション分解を行う。
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hitoshi/patchvote/internal/model"
)

// minContentLength はパッチノート本文として受理する最小文字数。
// これ未満はコンテナ誤検出か未描画ページとみなしPARSE_FAILEDにする。
const minContentLength = 200

// containerSelectors はパッチノート本体を特定するセレクタの優先順位。
var containerSelectors = []string{
	"#patch-notes-container",
	`[data-testid="rich-text-html"]`,
	"article",
	"main",
}

// PatchParser はパッチノートHTMLの解析機能を提供する。
type PatchParser struct{}

// NewPatchParser はPatchParserの新しいインスタンスを生成する。
func NewPatchParser() *PatchParser {
	return &PatchParser{}
}

// Parse は取得済みの生HTMLを解析してParsedPatchを返す。
// コンテナが見つからない、または本文が短すぎる場合はPARSE_FAILEDを返す。
func (p *PatchParser) Parse(raw *model.RawPatch) (*model.ParsedPatch, error) {
	version := raw.Descriptor.Version

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.HTML))
	if err != nil {
		return nil, model.NewParseError(version, fmt.Sprintf("HTMLの解析に失敗: %s", err.Error()))
	}

	container := selectContainer(doc)
	if container == nil {
		return nil, model.NewParseError(version, "パッチノートのコンテナが見つかりません")
	}

	rawHTML, err := goquery.OuterHtml(container)
	if err != nil {
		return nil, model.NewParseError(version, fmt.Sprintf("コンテナの再構成に失敗: %s", err.Error()))
	}

	rawText := renderText(container)
	if len(rawText) < minContentLength {
		return nil, model.NewParseError(version,
			fmt.Sprintf("本文が短すぎます (%d文字)", len(rawText)))
	}

	releasedAt := raw.Descriptor.PublishedAt
	if releasedAt == nil {
		releasedAt = releaseDateFromDocument(doc)
	}

	return &model.ParsedPatch{
		Version:     version,
		ReleasedAt:  releasedAt,
		SourceURL:   raw.SourceURL,
		SourceSlug:  slugFromURL(raw.SourceURL),
		RawText:     rawText,
		RawHTML:     rawHTML,
		ContentHash: ContentHash(rawText, rawHTML),
		Sections:    parseSections(container),
	}, nil
}

// releaseDateFromDocument はページ内の最初の<time datetime>からリリース日を抽出する。
// 属性がないか解析できない場合はnilを返す。
func releaseDateFromDocument(doc *goquery.Document) *time.Time {
	datetime, ok := doc.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, datetime); err == nil {
			return &t
		}
	}
	return nil
}

// selectContainer は優先順位に従ってパッチノート本体のコンテナを選択する。
func selectContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range containerSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// ContentHash は変更検知用のコンテンツハッシュを計算する。
// テキストとHTMLを空行で連結したSHA-256の16進表現。
func ContentHash(rawText, rawHTML string) string {
	payload := rawText + "\n\n" + rawHTML
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// renderText はノード配下のテキストを1テキストノード1行で描画する。
// 各テキストノードは前後の空白を除去し、空のノードはスキップする。
// script/style配下は無視する。
func renderText(sel *goquery.Selection) string {
	var lines []string
	for _, node := range sel.Nodes {
		collectTextLines(node, &lines)
	}
	return strings.Join(lines, "\n")
}

func collectTextLines(n *html.Node, lines *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextLines(c, lines)
	}
}

// slugFromURL はURL末尾のパスセグメントをスラグとして抽出する。
func slugFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
