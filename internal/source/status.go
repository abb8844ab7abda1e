package source

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotFound はパッチが存在しないステータス（404/410）。
	// 個別パッチ取得では次のURL候補を試し、全候補で発生した場合は
	// not_foundとして記録される。
	FetchResultNotFound
	// FetchResultUnavailable はソース側の一時的な問題（429/5xx）。
	FetchResultUnavailable
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 404 || statusCode == 410:
		return FetchResultNotFound
	case statusCode == 429:
		return FetchResultUnavailable
	case statusCode >= 500:
		return FetchResultUnavailable
	default:
		return FetchResultUnknown
	}
}
