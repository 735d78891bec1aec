package types

// Outcome は一つのURLに対する処理結果の種別です。
type Outcome int

const (
	OutcomeSaved            Outcome = iota // 保存に成功
	OutcomeSkippedNotImage                 // Content-Type が画像ではない
	OutcomeSkippedTooLarge                 // Content-Length が上限を超えている
	OutcomeSkippedDuplicate                // 同じ内容の画像を既に保存済み
	OutcomeFailed                          // エラーが発生した
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeSkippedNotImage:
		return "skipped_not_image"
	case OutcomeSkippedTooLarge:
		return "skipped_too_large"
	case OutcomeSkippedDuplicate:
		return "skipped_duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Skipped は検査によって保存を見送った結果かどうかを返します。
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedNotImage || o == OutcomeSkippedTooLarge || o == OutcomeSkippedDuplicate
}

// URLResult は、特定のURLの処理結果、またはその処理中に発生したエラーを保持します。
// これは、Fetcherの出力、レポートの入力として利用されます。
type URLResult struct {
	URL           string  // 処理対象のURL
	Outcome       Outcome // 処理結果の種別
	SavedPath     string  // 保存先のパス (OutcomeSaved のみ)
	ContentType   string  // レスポンスの Content-Type
	ContentLength int64   // レスポンスの Content-Length (-1 はヘッダーなし)
	Hash          string  // ボディの MD5 (16進)
	Error         error   // 処理中に発生したエラー (OutcomeFailed のみ)
}
