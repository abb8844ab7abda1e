package model

import (
	"errors"
	"fmt"
)

// IngestError は取り込みパイプラインのエラー分類を表す。
// Runレベルのエラー（ソース到達不能・インデックス不正）は実行を中断し、
// 項目レベルのエラー（パース失敗・ストア失敗）は記録してスキップされる。
type IngestError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: source, parse, store
	Err      error  // 元エラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元エラーを返す。errors.Is/Asとの連携用。
func (e *IngestError) Unwrap() error {
	return e.Err
}

// 定義済み取り込みエラーコード
const (
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrCodeSourceFormat      = "SOURCE_FORMAT_ERROR"
	ErrCodePatchNotFound     = "PATCH_NOT_FOUND"
	ErrCodeParseFailed       = "PARSE_FAILED"
	ErrCodeStoreFailed       = "STORE_FAILED"
)

// NewSourceUnavailableError はソース到達不能エラーを生成する。Runレベル。
func NewSourceUnavailableError(reason string, err error) *IngestError {
	return &IngestError{
		Code:     ErrCodeSourceUnavailable,
		Message:  fmt.Sprintf("外部ソースに到達できません: %s", reason),
		Category: "source",
		Err:      err,
	}
}

// NewSourceFormatError はインデックス構造不正エラーを生成する。Runレベル。
func NewSourceFormatError(reason string) *IngestError {
	return &IngestError{
		Code:     ErrCodeSourceFormat,
		Message:  fmt.Sprintf("ソースのインデックスを解釈できません: %s", reason),
		Category: "source",
	}
}

// NewPatchNotFoundError は対象バージョンのページが存在しないことを表すエラーを生成する。
// 項目レベル。失敗ではなく未発見として集計される。
func NewPatchNotFoundError(version string) *IngestError {
	return &IngestError{
		Code:     ErrCodePatchNotFound,
		Message:  fmt.Sprintf("パッチページが見つかりません: %s", version),
		Category: "source",
	}
}

// NewParseError はパッチ1件分のパース失敗エラーを生成する。項目レベル。
func NewParseError(version, reason string) *IngestError {
	return &IngestError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("パッチ %s のパースに失敗しました: %s", version, reason),
		Category: "parse",
	}
}

// NewStoreError は永続化層の書き込み失敗エラーを生成する。項目レベル。
func NewStoreError(version string, err error) *IngestError {
	return &IngestError{
		Code:     ErrCodeStoreFailed,
		Message:  fmt.Sprintf("パッチ %s の保存に失敗しました", version),
		Category: "store",
		Err:      err,
	}
}

// hasIngestCode はエラーチェーンに指定コードのIngestErrorが含まれるかを判定する。
func hasIngestCode(err error, code string) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// IsSourceUnavailable はソース到達不能エラーかを判定する。
func IsSourceUnavailable(err error) bool {
	return hasIngestCode(err, ErrCodeSourceUnavailable)
}

// IsSourceFormatError はインデックス構造不正エラーかを判定する。
func IsSourceFormatError(err error) bool {
	return hasIngestCode(err, ErrCodeSourceFormat)
}

// IsPatchNotFound はパッチページ未発見エラーかを判定する。
func IsPatchNotFound(err error) bool {
	return hasIngestCode(err, ErrCodePatchNotFound)
}

// IsParseError はパース失敗エラーかを判定する。
func IsParseError(err error) bool {
	return hasIngestCode(err, ErrCodeParseFailed)
}

// IsStoreError はストア失敗エラーかを判定する。
func IsStoreError(err error) bool {
	return hasIngestCode(err, ErrCodeStoreFailed)
}

// IsRunLevel は実行全体を中断すべきエラーかを判定する。
// ソース到達不能とインデックス構造不正のみがRunレベル。
func IsRunLevel(err error) bool {
	return IsSourceUnavailable(err) || IsSourceFormatError(err)
}

// APIError はHTTP APIの統一エラーフォーマットを表す。
// 原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, patch, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewPatchVersionNotFoundError は指定バージョンのパッチが未取り込みの場合のエラーを生成する。
func NewPatchVersionNotFoundError(version string) *APIError {
	return &APIError{
		Code:     "PATCH_VERSION_NOT_FOUND",
		Message:  fmt.Sprintf("指定されたバージョンのパッチが見つかりません: %s", version),
		Category: "patch",
		Action:   "バージョン表記（例: 14.3）を確認してください。",
	}
}

// NewInvalidSectionFilterError は無効なセクションフィルタエラーを生成する。
func NewInvalidSectionFilterError(filter string) *APIError {
	return &APIError{
		Code:     "INVALID_SECTION_FILTER",
		Message:  fmt.Sprintf("無効なセクションフィルタです: %s", filter),
		Category: "validation",
		Action:   "categoryには overview/champions/items/traits/augments/other、sizeには all/large/small を指定してください。",
	}
}
