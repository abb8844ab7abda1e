package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/patchvote/internal/model"
)

// unitTierPattern は「UNITS: TIER 3」形式の見出しからティアを抽出するパターン。
var unitTierPattern = regexp.MustCompile(`(?i)^UNITS:\s*TIER\s*(\d+)`)

// parseSections はコンテナ配下をドキュメント順に走査してセクションに分解する。
//
// 走査ルール:
//   - h2は変更規模グループ（LARGE CHANGES / SMALL CHANGES / それ以外はall）を切り替える
//   - h4はカテゴリ（champions/traits/augments/items/other）を切り替える
//   - blockquote/ulがコンテンツブロックとなり、直近のh2/h4の文脈で1セクションになる
//
// 冒頭のblockquote.contextと.context-designersは概要セクションとしてまとめ、
// 走査からは除外する。
func parseSections(container *goquery.Selection) []model.ParsedSection {
	var sections []model.ParsedSection
	order := 0

	intro := container.Find("blockquote.context").First()
	designers := container.Find(".context-designers").First()

	if overview := buildOverview(intro, designers); overview != nil {
		overview.Order = order
		sections = append(sections, *overview)
		order++
	}

	currentSize := model.SectionSizeAll
	currentH2 := ""
	currentH4 := ""

	container.Find("h2, h4, blockquote, ul").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "h2":
			currentH2 = headingText(sel)
			currentSize = sizeFromH2(currentH2)
			currentH4 = ""

		case "h4":
			currentH4 = headingText(sel)

		case "blockquote", "ul":
			// 概要として使用済みのノードはスキップ
			if intro.Length() > 0 && sel.Nodes[0] == intro.Nodes[0] {
				return
			}

			lines := blockLines(sel)
			text := strings.Join(lines, "\n")
			if text == "" {
				return
			}

			category := model.SectionCategoryOther
			if currentH4 != "" {
				category = categoryFromH4(currentH4)
			}

			sections = append(sections, model.ParsedSection{
				Category: category,
				Size:     currentSize,
				H2:       currentH2,
				H4:       currentH4,
				Order:    order,
				Text:     text,
				Lines:    lines,
				UnitTier: unitTierFromH4(currentH4),
			})
			order++
		}
	})

	return sections
}

// buildOverview は冒頭の説明ブロックから概要セクションを組み立てる。
// 該当ブロックが存在しない場合はnilを返す。
func buildOverview(intro, designers *goquery.Selection) *model.ParsedSection {
	var parts []string
	if intro.Length() > 0 {
		if text := renderText(intro); text != "" {
			parts = append(parts, text)
		}
	}
	if designers.Length() > 0 {
		if text := renderText(designers); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	text := strings.Join(parts, "\n\n")
	return &model.ParsedSection{
		Category: model.SectionCategoryOverview,
		Size:     model.SectionSizeAll,
		Text:     text,
		Lines:    strings.Split(text, "\n"),
	}
}

// headingText は見出し要素のテキストを1行に正規化して返す。
func headingText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// blockLines はコンテンツブロックを行のリストとして描画する。
// ulは各liを1行、blockquoteはテキストノードごとに1行とする。
func blockLines(sel *goquery.Selection) []string {
	if goquery.NodeName(sel) == "ul" {
		var lines []string
		sel.Children().Each(func(_ int, li *goquery.Selection) {
			if goquery.NodeName(li) != "li" {
				return
			}
			if text := strings.Join(strings.Fields(li.Text()), " "); text != "" {
				lines = append(lines, text)
			}
		})
		return lines
	}

	text := renderText(sel)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// sizeFromH2 はh2見出しから変更規模グループを判定する。
func sizeFromH2(title string) model.SectionSize {
	t := strings.ToUpper(strings.TrimSpace(title))
	switch {
	case strings.Contains(t, "LARGE CHANGES"):
		return model.SectionSizeLarge
	case strings.Contains(t, "SMALL CHANGES"):
		return model.SectionSizeSmall
	default:
		return model.SectionSizeAll
	}
}

// categoryFromH4 はh4見出しからセクションカテゴリを判定する。
func categoryFromH4(title string) model.SectionCategory {
	t := strings.ToUpper(strings.TrimSpace(title))

	if strings.HasPrefix(t, "UNITS:") {
		return model.SectionCategoryChampions
	}

	switch t {
	case "TRAITS":
		return model.SectionCategoryTraits
	case "AUGMENTS":
		return model.SectionCategoryAugments
	case "CORE ITEMS", "RADIANT ITEMS", "ARTIFACTS", "EMBLEMS":
		return model.SectionCategoryItems
	}

	// LEVELING、ENCOUNTERS、AURAS等はすべてother
	return model.SectionCategoryOther
}

// unitTierFromH4 は「UNITS: TIER n」形式の見出しからティアを抽出する。
// 該当しない場合はnilを返す。
func unitTierFromH4(title string) *int {
	m := unitTierPattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return nil
	}
	tier, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &tier
}
