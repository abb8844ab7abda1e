// Package source は外部パッチソースからのパッチノート取得を提供する。
//
// PatchSource はバージョンの発見と個別パッチの取得を抽象化する。
// 取得対象はゲーム公式サイトのHTMLページ（RiotHTMLSource）または
// RSS/Atomフィード（RSSSource）である。
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/patchvote/internal/model"
)

// PatchSource は外部パッチソースのインターフェースを定義する。
type PatchSource interface {
	// ListAvailableVersions は取得可能なパッチバージョンの一覧を返す。
	// 新しいバージョンが先頭になるよう降順でソートされる。
	// ソースに到達できない場合はSOURCE_UNAVAILABLE、
	// 取得できたが構造を解釈できない場合はSOURCE_FORMAT_ERRORを返す。
	ListAvailableVersions(ctx context.Context) ([]model.PatchDescriptor, error)

	// GetPatchDetail は1バージョン分のパッチノートHTMLを取得する。
	// すべてのURL候補が404/410の場合はPATCH_NOT_FOUND、
	// 429/5xxやネットワークエラーの場合はSOURCE_UNAVAILABLEを返す。
	GetPatchDetail(ctx context.Context, desc model.PatchDescriptor) (*model.RawPatch, error)
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}
