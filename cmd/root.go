package cmd

import (
	"log"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-image-fetcher/internal/config"
	"github.com/shouni/go-image-fetcher/pkg/httpclient"
)

// --- グローバル定数 ---

const (
	appName = "image-fetcher"
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout リクエスト一回あたりのタイムアウト
	MaxRetries uint64 // --max-retries リトライ回数 (0 は再試行なし)
}

var Flags AppFlags
var appConfig *config.Config
var globalClient *httpclient.Client

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
// 既定値は環境変数 (IMAGE_FETCHER_*) から読み込んだ設定です。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		appConfig.TimeoutSec,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().Uint64Var(
		&Flags.MaxRetries,
		"max-retries",
		appConfig.MaxRetries,
		"HTTPリクエストのリトライ最大回数 (0 で再試行なし)",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(Flags.TimeoutSec) * time.Second

	if clibase.Flags.Verbose {
		log.Printf("HTTPクライアントのタイムアウトを設定しました (Timeout: %s)。", timeout)
		log.Printf("HTTPクライアントのリトライ回数を設定しました (MaxRetries: %d)。", Flags.MaxRetries)
	}

	globalClient = httpclient.New(
		timeout,
		httpclient.WithMaxRetries(Flags.MaxRetries),
	)

	return nil
}

// GetGlobalClient は、初期化されたHTTPクライアントを返す関数 (DIの代わり)
func GetGlobalClient() *httpclient.Client {
	return globalClient
}

// --- エントリポイント ---

// Execute は、設定を読み込み、clibase.Execute でコマンドを実行します。
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	appConfig = cfg

	// clibase.Execute の中で os.Exit(1) が処理される
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		newFetchCmd(cfg),
	)
}
