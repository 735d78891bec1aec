package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-image-fetcher/pkg/retry"
)

// MockHTTPClient は Doer インターフェースを満たすモックです。
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	err := args.Error(1)
	if args.Get(0) != nil {
		return args.Get(0).(*http.Response), err
	}
	return nil, err
}

func newResponse(status int, contentType string, body []byte) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}
}

// fastRetry はテスト用に待ち時間を短縮したリトライ設定を返します。
func fastRetry(max uint64) retry.Config {
	return retry.Config{MaxRetries: max, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		client := New(0)
		assert.Equal(t, DefaultHTTPTimeout, client.httpClient.(*http.Client).Timeout)
		assert.Equal(t, uint64(0), client.retryConfig.MaxRetries)
	})
	t.Run("custom timeout", func(t *testing.T) {
		client := New(3 * time.Second)
		assert.Equal(t, 3*time.Second, client.httpClient.(*http.Client).Timeout)
	})
	t.Run("options", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(time.Second, WithHTTPClient(mockClient), WithMaxRetries(4), WithUserAgent("test-agent"))
		assert.Equal(t, mockClient, client.httpClient)
		assert.Equal(t, uint64(4), client.retryConfig.MaxRetries)
		assert.Equal(t, "test-agent", client.userAgent)
	})
}

func TestStatusError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StatusError
		expected string
	}{
		{"with status line", &StatusError{StatusCode: 404, Status: "404 Not Found"}, "HTTPステータスエラー: 404 Not Found"},
		{"without status line", &StatusError{StatusCode: 500}, "HTTPステータスエラー: 500 Internal Server Error"},
		{"with body", &StatusError{StatusCode: 400, Status: "400 Bad Request", Body: []byte(" bad ")}, "HTTPステータスエラー: 400 Bad Request, ボディ: bad"},
		{"truncated body", &StatusError{StatusCode: 400, Status: "400 Bad Request", Body: []byte(strings.Repeat("a", 1025))}, "HTTPステータスエラー: 400 Bad Request, ボディ: " + strings.Repeat("a", 1024) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestGet(t *testing.T) {
	url := "https://example.com/cat.jpg"
	ctx := context.Background()

	t.Run("successful fetch", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		body := []byte("jpeg-bytes")
		mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Method == http.MethodGet && req.Header.Get("User-Agent") == UserAgent
		})).Return(newResponse(http.StatusOK, "image/jpeg", body), nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, nil)
		require.NoError(t, err)
		assert.Equal(t, body, resp.Body)
		assert.Equal(t, "image/jpeg", resp.ContentType)
		assert.Equal(t, int64(len(body)), resp.ContentLength)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockClient.AssertExpectations(t)
	})

	t.Run("status error is not retried by default", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusServiceUnavailable, "text/plain", nil), nil)

		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, nil)
		assert.Nil(t, resp)
		assert.True(t, IsStatusError(err))
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("network error", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(nil, errors.New("network error"))

		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, nil)
		assert.Error(t, err)
		assert.Nil(t, resp)
		assert.False(t, IsStatusError(err))
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("header rejection skips the body", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusOK, "text/html", []byte("<html></html>")), nil)
		rejected := errors.New("rejected")

		client := &Client{httpClient: mockClient, retryConfig: fastRetry(3)}
		var seen *Response
		resp, err := client.Get(ctx, url, func(r *Response) error {
			seen = r
			return rejected
		})
		require.ErrorIs(t, err, rejected)
		assert.Nil(t, resp)
		require.NotNil(t, seen)
		assert.Equal(t, "text/html", seen.ContentType)
		assert.Nil(t, seen.Body)
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})
}

func TestGet_WithRetries(t *testing.T) {
	url := "https://example.com/cat.jpg"
	ctx := context.Background()

	t.Run("successful fetch after retries", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		expected := []byte("Success")

		// 1回目: ネットワークエラー
		mockClient.On("Do", mock.Anything).Return(nil, errors.New("temporary network error")).Once()
		// 2回目: サーバーエラー
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusGatewayTimeout, "", nil), nil).Once()
		// 3回目: 成功
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusOK, "image/png", expected), nil).Once()

		client := &Client{httpClient: mockClient, retryConfig: fastRetry(2)}
		resp, err := client.Get(ctx, url, nil)
		require.NoError(t, err)
		assert.Equal(t, expected, resp.Body)
		mockClient.AssertNumberOfCalls(t, "Do", 3)
	})

	t.Run("client error stops immediately", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(newResponse(http.StatusNotFound, "text/plain", []byte("missing")), nil).Once()

		client := &Client{httpClient: mockClient, retryConfig: fastRetry(2)}
		resp, err := client.Get(ctx, url, nil)
		assert.Nil(t, resp)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, []byte("missing"), statusErr.Body)
		mockClient.AssertNumberOfCalls(t, "Do", 1)
	})

	t.Run("failure after all retries exhausted", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(nil, errors.New("network error"))

		client := &Client{httpClient: mockClient, retryConfig: fastRetry(2)}
		resp, err := client.Get(ctx, url, nil)
		assert.Error(t, err)
		assert.Nil(t, resp)
		mockClient.AssertNumberOfCalls(t, "Do", 3)
	})
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGet_GzipEncoding(t *testing.T) {
	url := "https://example.com/cat.jpg"
	ctx := context.Background()

	t.Run("requests gzip explicitly and decodes the body", func(t *testing.T) {
		body := []byte("jpeg-bytes")
		encoded := gzipBytes(t, body)
		httpResp := newResponse(http.StatusOK, "image/jpeg", encoded)
		httpResp.Header.Set("Content-Encoding", "gzip")

		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Header.Get("Accept-Encoding") == "gzip"
		})).Return(httpResp, nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, nil)
		require.NoError(t, err)
		assert.Equal(t, body, resp.Body)
		// Content-Length は圧縮後のサイズのまま
		assert.Equal(t, int64(len(encoded)), resp.ContentLength)
		mockClient.AssertExpectations(t)
	})

	t.Run("declared length is visible to the header hook", func(t *testing.T) {
		httpResp := newResponse(http.StatusOK, "image/jpeg", nil)
		httpResp.Header.Set("Content-Encoding", "gzip")
		httpResp.ContentLength = 6000000

		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(httpResp, nil).Once()

		var seen int64
		rejected := errors.New("too large")
		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, func(r *Response) error {
			seen = r.ContentLength
			return rejected
		})
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, rejected)
		assert.Equal(t, int64(6000000), seen)
	})

	t.Run("broken gzip body is a read error", func(t *testing.T) {
		httpResp := newResponse(http.StatusOK, "image/jpeg", []byte("not gzip"))
		httpResp.Header.Set("Content-Encoding", "gzip")

		mockClient := new(MockHTTPClient)
		mockClient.On("Do", mock.Anything).Return(httpResp, nil).Once()

		client := New(0, WithHTTPClient(mockClient))
		resp, err := client.Get(ctx, url, nil)
		assert.Nil(t, resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gzipの展開に失敗しました")
	})
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(&headerError{err: errors.New("x")}))
	assert.False(t, isRetryableError(&StatusError{StatusCode: 403}))
	assert.True(t, isRetryableError(&StatusError{StatusCode: 502}))
	assert.True(t, isRetryableError(errors.New("connection reset")))
}
