package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-image-fetcher/pkg/fetch"
	"github.com/shouni/go-image-fetcher/pkg/types"
)

// Processor はURL一件を処理する機能のインターフェースです。*fetch.Fetcher が満たします。
type Processor interface {
	Process(ctx context.Context, rawURL string, state *fetch.State) types.URLResult
}

// DirEnsurer は保存先ディレクトリを用意する機能のインターフェースです。*storage.Store が満たします。
type DirEnsurer interface {
	EnsureDir() error
}

// ReportFunc はURL一件の処理が終わるたびに呼び出されます。
type ReportFunc func(types.URLResult)

// Summary はバッチ全体の集計です。
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
	Results []types.URLResult
}

// Add は結果を集計に加えます。
func (s *Summary) Add(res types.URLResult) {
	switch {
	case res.Outcome == types.OutcomeSaved:
		s.Saved++
	case res.Outcome.Skipped():
		s.Skipped++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, res)
}

// Total は処理したURLの件数を返します。空のエントリは含みません。
func (s Summary) Total() int {
	return len(s.Results)
}

// SplitURLs はカンマ区切りの入力をURLのリストに分割します。
// 前後の空白は取り除き、空のエントリは黙って捨てます。
func SplitURLs(input string) []string {
	var urls []string
	for _, part := range strings.Split(input, ",") {
		u := strings.TrimSpace(part)
		if u == "" {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// Run は入力に含まれるURLを先頭から順に一件ずつ処理します。
// 保存先ディレクトリは入力の内容に関わらず毎回作成されます。
// URL単位の失敗は Summary に記録され、エラーとしては返りません。
func Run(ctx context.Context, input string, dir DirEnsurer, p Processor, state *fetch.State, report ReportFunc) (Summary, error) {
	var summary Summary

	if err := dir.EnsureDir(); err != nil {
		return summary, fmt.Errorf("保存先の準備に失敗しました: %w", err)
	}
	if state == nil {
		state = fetch.NewState()
	}

	for _, u := range SplitURLs(input) {
		res := p.Process(ctx, u, state)
		summary.Add(res)
		if report != nil {
			report(res)
		}
	}

	return summary, nil
}
