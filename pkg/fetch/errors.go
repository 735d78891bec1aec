package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/shouni/go-image-fetcher/pkg/httpclient"
)

// ErrorKind はURL単位で発生したエラーの分類です。
type ErrorKind int

const (
	KindInvalidURL        ErrorKind = iota // スキームが無い、またはパースできないURL
	KindHTTPStatus                         // 4xx/5xx のステータスコード
	KindConnectionFailure                  // DNS解決失敗、接続拒否、到達不能
	KindTimeout                            // タイムアウト
	KindIOFailure                          // ファイルシステムへの書き込み失敗
	KindOther                              // 上記以外
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindHTTPStatus:
		return "http_status"
	case KindConnectionFailure:
		return "connection_failure"
	case KindTimeout:
		return "timeout"
	case KindIOFailure:
		return "io_failure"
	default:
		return "other"
	}
}

// ErrMissingScheme はURLに http:// や https:// が含まれていないことを示します。
var ErrMissingScheme = errors.New("URLにスキームがありません")

// Error は分類付きのURL単位のエラーです。
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (URL: %s): %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はエラーの分類を返します。*Error 以外のエラーは内容から推定します。
func KindOf(err error) ErrorKind {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return classify(err)
}

// classify は下位レイヤーのエラーを ErrorKind に変換します。
// タイムアウトの判定は接続エラーより先に行います (ダイヤルのタイムアウトも net.OpError になるため)。
func classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, ErrMissingScheme) {
		return KindInvalidURL
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return KindHTTPStatus
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectionFailure
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionFailure
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindIOFailure
	}

	return KindOther
}

func newError(kind ErrorKind, url string, err error) *Error {
	return &Error{Kind: kind, URL: url, Err: err}
}
