// Package model はドメインモデルを定義する。
package model

import "time"

// Patch はゲームバランスパッチノートの1リリース分を表す。
// 原文のHTML/テキストをそのまま保持する正規のレコード。
type Patch struct {
	ID          string
	Version     string // 例: "14.3"。ストア全体で一意。
	ReleasedAt  *time.Time
	SourceURL   string
	SourceSlug  string
	RawText     string
	RawHTML     string // サニタイズ済みHTML
	ContentHash string // sha256(raw_text + "\n\n" + raw_html)
	FetchedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SectionCategory はパッチセクションのカテゴリを表す。
type SectionCategory string

const (
	// SectionCategoryOverview はパッチ冒頭の概要セクション。
	SectionCategoryOverview SectionCategory = "overview"
	// SectionCategoryChampions はユニット（チャンピオン）変更のセクション。
	SectionCategoryChampions SectionCategory = "champions"
	// SectionCategoryItems はアイテム変更のセクション。
	SectionCategoryItems SectionCategory = "items"
	// SectionCategoryTraits は特性変更のセクション。
	SectionCategoryTraits SectionCategory = "traits"
	// SectionCategoryAugments はオーグメント変更のセクション。
	SectionCategoryAugments SectionCategory = "augments"
	// SectionCategoryOther は上記以外の変更セクション。
	SectionCategoryOther SectionCategory = "other"
)

// SectionSize は変更規模（LARGE CHANGES / SMALL CHANGES）の分類を表す。
type SectionSize string

const (
	// SectionSizeAll は規模見出しの外にあるセクション。
	SectionSizeAll SectionSize = "all"
	// SectionSizeLarge は「LARGE CHANGES」配下のセクション。
	SectionSizeLarge SectionSize = "large"
	// SectionSizeSmall は「SMALL CHANGES」配下のセクション。
	SectionSizeSmall SectionSize = "small"
)

// PatchSection はパッチノートの構造を保持する1ブロック分のセクション。
// 親パッチが作成・更新されるたびに全件入れ替えられる。
type PatchSection struct {
	ID       string
	PatchID  string
	Category SectionCategory
	Size     SectionSize
	H2       string // 例: "LARGE CHANGES"
	H4       string // 例: "UNITS: TIER 1"
	Order    int
	Text     string
	Lines    []string
	UnitTier *int // H4が "UNITS: TIER n" の場合のn
}
