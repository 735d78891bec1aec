package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shouni/go-image-fetcher/pkg/dedup"
	"github.com/shouni/go-image-fetcher/pkg/httpclient"
	"github.com/shouni/go-image-fetcher/pkg/storage"
	"github.com/shouni/go-image-fetcher/pkg/types"
)

const (
	// DefaultMaxContentLength は Content-Length ヘッダーで許可する最大バイト数 (5MiB) です。
	DefaultMaxContentLength int64 = 5 * 1024 * 1024

	imageContentTypeMarker = "image"
)

// Getter は画像のGETを行う機能のインターフェースです。*httpclient.Client が満たします。
type Getter interface {
	Get(ctx context.Context, url string, accept httpclient.HeaderFunc) (*httpclient.Response, error)
}

// Saver はボディをファイルとして保存する機能のインターフェースです。*storage.Store が満たします。
type Saver interface {
	Save(name string, body []byte) (string, error)
}

// State は一回の実行の間だけ保持される状態です。
type State struct {
	Hashes *dedup.HashSet
}

// NewState は空の重複ハッシュ集合を持つ State を生成します。
func NewState() *State {
	return &State{Hashes: dedup.NewHashSet()}
}

// Fetcher はURL一つ分の取得・検査・重複排除・保存を行います。
type Fetcher struct {
	client           Getter
	store            Saver
	maxContentLength int64
}

// Option は Fetcher の設定を行うための関数型です。
type Option func(*Fetcher)

// WithMaxContentLength は Content-Length の上限を変更します。0 以下は無視されます。
func WithMaxContentLength(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxContentLength = n
		}
	}
}

// New は、新しいFetcherのインスタンスを生成します。
func New(client Getter, store Saver, options ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("fetch.New: Getter cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("fetch.New: Saver cannot be nil")
	}

	f := &Fetcher{
		client:           client,
		store:            store,
		maxContentLength: DefaultMaxContentLength,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

// skipError はヘッダー検査で保存を見送ったことを示します。
type skipError struct {
	outcome types.Outcome
	reason  string
	resp    *httpclient.Response
}

func (e *skipError) Error() string { return e.reason }

// Process は rawURL を一件処理し、その結果を返します。
// エラーは返り値の URLResult に格納され、呼び出し元の処理を中断しません。
func (f *Fetcher) Process(ctx context.Context, rawURL string, state *State) types.URLResult {
	if state == nil {
		state = NewState()
	}
	result := types.URLResult{URL: rawURL, ContentLength: -1}

	if err := validateURL(rawURL); err != nil {
		return failed(result, KindInvalidURL, err)
	}

	resp, err := f.client.Get(ctx, rawURL, f.checkHeaders)
	if err != nil {
		var skip *skipError
		if errors.As(err, &skip) {
			result.Outcome = skip.outcome
			result.ContentType = skip.resp.ContentType
			result.ContentLength = skip.resp.ContentLength
			return result
		}
		return failed(result, classify(err), err)
	}
	result.ContentType = resp.ContentType
	result.ContentLength = resp.ContentLength

	name := storage.FileNameFromURL(rawURL)

	// ハッシュは書き込みの前に登録する
	result.Hash = dedup.Sum(resp.Body)
	if !state.Hashes.Add(result.Hash) {
		result.Outcome = types.OutcomeSkippedDuplicate
		return result
	}

	path, err := f.store.Save(name, resp.Body)
	if err != nil {
		return failed(result, KindIOFailure, err)
	}

	result.Outcome = types.OutcomeSaved
	result.SavedPath = path
	return result
}

// checkHeaders はボディを読む前に Content-Type と Content-Length を検査します。
// Content-Type は部分一致です。Content-Length が無い場合はサイズを検査しません。
func (f *Fetcher) checkHeaders(resp *httpclient.Response) error {
	if !strings.Contains(resp.ContentType, imageContentTypeMarker) {
		return &skipError{
			outcome: types.OutcomeSkippedNotImage,
			reason:  fmt.Sprintf("画像ではありません (Content-Type: %q)", resp.ContentType),
			resp:    resp,
		}
	}
	if resp.ContentLength > f.maxContentLength {
		return &skipError{
			outcome: types.OutcomeSkippedTooLarge,
			reason:  fmt.Sprintf("サイズが上限を超えています (%d > %d バイト)", resp.ContentLength, f.maxContentLength),
			resp:    resp,
		}
	}
	return nil
}

// validateURL はリクエスト前にスキームの有無だけを確認します。
// http/https 以外のスキームはHTTPクライアント側でエラーになります。
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLのパースエラー: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: %s", ErrMissingScheme, rawURL)
	}
	return nil
}

func failed(result types.URLResult, kind ErrorKind, err error) types.URLResult {
	result.Outcome = types.OutcomeFailed
	result.Error = newError(kind, result.URL, err)
	return result
}
