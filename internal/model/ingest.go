package model

import "time"

// PatchDescriptor は外部ソースのインデックスから得た未取得のパッチ候補を表す。
type PatchDescriptor struct {
	Version     string
	Title       string
	URL         string // 空の場合はソース側がスラグ候補を組み立てる
	PublishedAt *time.Time
}

// RawPatch は1バージョン分の取得済み未パースコンテンツを表す。
type RawPatch struct {
	Descriptor PatchDescriptor
	SourceURL  string // 実際に取得に成功したURL
	HTML       string
}

// ParsedPatch はパース済みの永続化前パッチデータを表す。
// UpsertServiceに渡される。
type ParsedPatch struct {
	Version     string
	ReleasedAt  *time.Time
	SourceURL   string
	SourceSlug  string
	RawText     string
	RawHTML     string // 未サニタイズ。保存時にサニタイズされる。
	ContentHash string
	Sections    []ParsedSection
}

// ParsedSection はパース済みの永続化前セクションデータを表す。
type ParsedSection struct {
	Category SectionCategory
	Size     SectionSize
	H2       string
	H4       string
	Order    int
	Text     string
	Lines    []string
	UnitTier *int
}

// UpsertOutcome はUPSERT結果の分類を表す。
type UpsertOutcome string

const (
	// OutcomeCreated は新規レコードが挿入されたことを示す。
	OutcomeCreated UpsertOutcome = "created"
	// OutcomeUpdated はコンテンツ差分により既存レコードが更新されたことを示す。
	OutcomeUpdated UpsertOutcome = "updated"
	// OutcomeUnchanged はコンテンツが同一のため何も変更されなかったことを示す。
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// IngestFailure は1バージョン分の取り込み失敗の記録を表す。
type IngestFailure struct {
	Version string
	Reason  string
}

// IngestSummary は1回の取り込み実行の集計結果を表す。
// 項目単位の失敗はFailedに計上され、実行自体は成功として扱われる。
type IngestSummary struct {
	Created    int
	Updated    int
	Unchanged  int
	Failed     int
	NotFound   int
	Failures   []IngestFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total は取り込み対象として処理したバージョン数の合計を返す。
func (s *IngestSummary) Total() int {
	return s.Created + s.Updated + s.Unchanged + s.Failed + s.NotFound
}

// RunStatus は取り込み実行の終了ステータスを表す。
type RunStatus string

const (
	// RunStatusCompleted は実行が完走したことを示す（項目単位の失敗は含みうる）。
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed はソースレベルの失敗により実行が中断されたことを示す。
	RunStatusFailed RunStatus = "failed"
)

// IngestRun は取り込み実行1回分の監査レコードを表す。
type IngestRun struct {
	ID           string
	Status       RunStatus
	Created      int
	Updated      int
	Unchanged    int
	Failed       int
	NotFound     int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}
