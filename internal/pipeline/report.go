package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/shouni/go-image-fetcher/pkg/fetch"
	"github.com/shouni/go-image-fetcher/pkg/httpclient"
	"github.com/shouni/go-image-fetcher/pkg/types"
)

// Greeting は起動時に表示する案内文です。
const Greeting = "🌍 画像フェッチャーへようこそ 🌍\n" +
	"👉 画像のURLをカンマ (,) 区切りで入力してください"

// Prompt は標準入力からURLを読み込む際のプロンプトです。
const Prompt = "画像のURLを入力してください: "

// Message はURL一件の処理結果を人が読める一行に整形します。
func Message(res types.URLResult) string {
	switch res.Outcome {
	case types.OutcomeSaved:
		return fmt.Sprintf("✅ 画像を保存しました: %s", res.SavedPath)
	case types.OutcomeSkippedNotImage:
		return fmt.Sprintf("⚠️ 画像ではないためスキップします: %s (Content-Type: %q)", res.URL, res.ContentType)
	case types.OutcomeSkippedTooLarge:
		return fmt.Sprintf("⚠️ サイズが大きすぎるためスキップします: %s (%d バイト)", res.URL, res.ContentLength)
	case types.OutcomeSkippedDuplicate:
		return fmt.Sprintf("⚠️ 重複した画像のためスキップします: %s", res.URL)
	}
	return errorMessage(res)
}

func errorMessage(res types.URLResult) string {
	cause := res.Error
	var fetchErr *fetch.Error
	if errors.As(res.Error, &fetchErr) {
		cause = fetchErr.Err
	}

	switch fetch.KindOf(res.Error) {
	case fetch.KindInvalidURL:
		if errors.Is(cause, fetch.ErrMissingScheme) {
			return fmt.Sprintf("⚠️ 無効なURLです: %s。'http://' または 'https://' を含めてください。", res.URL)
		}
		return fmt.Sprintf("⚠️ 無効なURLです: %s (%v)", res.URL, cause)
	case fetch.KindHTTPStatus:
		var statusErr *httpclient.StatusError
		if errors.As(cause, &statusErr) {
			cause = statusErr
		}
		return fmt.Sprintf("⚠️ %s のHTTPエラー: %v", res.URL, cause)
	case fetch.KindConnectionFailure:
		return fmt.Sprintf("⚠️ %s に接続できませんでした。", res.URL)
	case fetch.KindTimeout:
		return fmt.Sprintf("⚠️ %s への接続がタイムアウトしました。", res.URL)
	default:
		return fmt.Sprintf("⚠️ %s の処理中に予期しない問題が発生しました: %v", res.URL, cause)
	}
}

// Printer は結果を一件ずつ w に書き出す ReportFunc を返します。
func Printer(w io.Writer) ReportFunc {
	return func(res types.URLResult) {
		fmt.Fprintln(w, Message(res))
	}
}

// PrintSummary はバッチ全体の集計を書き出します。
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "-------------------------------")
	fmt.Fprintf(w, "完了: 保存 %d 件, スキップ %d 件, 失敗 %d 件\n", s.Saved, s.Skipped, s.Failed)
}
