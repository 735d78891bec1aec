package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-image-fetcher/pkg/retry"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 10 * time.Second

	// エラーメッセージに含めるボディの最大長
	maxErrorBodyLength = 1024

	// サイトからのブロックを避けるためのUser-Agent
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError は 4xx/5xx のステータスコードを示すカスタムエラー型です。
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("HTTPステータスエラー: %s", status)
	}
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength] + "..."
	}
	return fmt.Sprintf("HTTPステータスエラー: %s, ボディ: %s", status, body)
}

// Retryable は 5xx 系のみ再試行対象とします。
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// Response は一度のGETで得られたレスポンスを保持します。
// ContentLength はヘッダーが無い場合 -1 です。
type Response struct {
	URL           string
	StatusCode    int
	ContentType   string
	ContentLength int64
	Body          []byte
}

// HeaderFunc はボディを読み込む前にレスポンスヘッダーを検査します。
// nil 以外のエラーを返すとボディは読まれず、そのエラーがリトライなしで返されます。
type HeaderFunc func(resp *Response) error

// Client はHTTP GETと、任意の指数バックオフによるリトライを管理します。
type Client struct {
	httpClient  Doer
	retryConfig retry.Config
	userAgent   string
}

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithMaxRetries は最大リトライ回数を設定します。
func WithMaxRetries(max uint64) ClientOption {
	return func(c *Client) {
		c.retryConfig.MaxRetries = max
	}
}

// WithUserAgent はリクエストに付与するUser-Agentを変更します。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New は、新しいClientを生成します。timeout はリクエスト一回あたりの上限です。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.DefaultConfig(),
		userAgent:   UserAgent,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get はURLへGETリクエストを送り、ボディ全体を読み込んだ Response を返します。
// accept は nil でもかまいません。
func (c *Client) Get(ctx context.Context, url string, accept HeaderFunc) (*Response, error) {
	var resp *Response

	op := func() error {
		var fetchErr error
		resp, fetchErr = c.doGet(ctx, url, accept)
		return fetchErr
	}

	err := retry.Do(
		ctx,
		c.retryConfig,
		fmt.Sprintf("URL(%s)の取得", url),
		op,
		isRetryableError,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// headerError は HeaderFunc が返したエラーを識別するためのラッパーです。
type headerError struct {
	err error
}

func (e *headerError) Error() string { return e.err.Error() }
func (e *headerError) Unwrap() error { return e.err }

// doGet は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doGet(ctx context.Context, url string, accept HeaderFunc) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	// 明示的に指定するとトランスポートは自動展開せず、Content-Length ヘッダーを残す
	req.Header.Set("Accept-Encoding", "gzip")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(httpResp); err != nil {
		return nil, err
	}

	resp := &Response{
		URL:           url,
		StatusCode:    httpResp.StatusCode,
		ContentType:   httpResp.Header.Get("Content-Type"),
		ContentLength: httpResp.ContentLength,
	}

	if accept != nil {
		if err := accept(resp); err != nil {
			return nil, &headerError{err: err}
		}
	}

	body, err := readBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	resp.Body = body

	return resp, nil
}

// readBody はボディ全体を読み込みます。Content-Encoding が gzip の場合は展開します。
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") && resp.ContentLength != 0 {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzipの展開に失敗しました: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

// checkStatus は 400 以上のステータスコードを *StatusError に変換します。
// ボディは閉じません。呼び出し元が resp.Body.Close() を実行する必要があります。
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength+1))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

// IsStatusError は与えられたエラーがHTTPステータスエラーであるかを判断します。
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// isRetryableError はエラーがリトライ対象かどうかを判定します。
// この関数は retry.ShouldRetryFunc 型のシグネチャを満たします。
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 呼び出し元のキャンセルは再試行しない
	if errors.Is(err, context.Canceled) {
		return false
	}

	var hErr *headerError
	if errors.As(err, &hErr) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	// ネットワークエラーやタイムアウトは再試行対象
	return true
}
