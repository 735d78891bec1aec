package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries は 0 です。画像取得は既定で一度だけ試行します。
	DefaultMaxRetries = 0

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// Config はリトライ動作を設定するための構造体です。
// MaxRetries は初回を除いた再試行回数です (0 なら一度だけ実行)。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// newBackOffPolicy は Config とコンテキストからバックオフポリシーを組み立てます。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフを使用して操作をリトライします。
// shouldRetryFn が false を返したエラーは即座に呼び出し元へ返されます。
// 返されるエラーは最後に発生した元のエラーをラップしているため、errors.As で型を判定できます。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	attempts := 0

	retryableOp := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if shouldRetryFn != nil && shouldRetryFn(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(retryableOp, newBackOffPolicy(ctx, cfg))
	if err == nil {
		return nil
	}

	// WithContext はキャンセル時に ctx.Err() だけを返す
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, err)
	}

	if attempts > 1 {
		return fmt.Errorf("%sに失敗しました (試行回数: %d回): %w", operationName, attempts, err)
	}
	return fmt.Errorf("%sに失敗しました: %w", operationName, err)
}
