package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-image-fetcher/internal/config"
	"github.com/shouni/go-image-fetcher/internal/pipeline"
	"github.com/shouni/go-image-fetcher/pkg/fetch"
	"github.com/shouni/go-image-fetcher/pkg/httpclient"
	"github.com/shouni/go-image-fetcher/pkg/storage"
	"github.com/shouni/go-image-fetcher/pkg/types"
)

// fetchOptions は fetch サブコマンドのフラグを保持します。
type fetchOptions struct {
	urls    string // --urls カンマ区切りのURLリスト
	saveDir string // --dir 保存先ディレクトリ
	maxSize int64  // --max-size Content-Length の上限
	verbose bool
}

// readURLLine は r から一行だけ読み込みます。行の長さに上限はありません。
// 改行なしで入力が終わった場合はそこまでを一行として扱い、入力が無い場合は空文字を返します。
func readURLLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// runFetch は入力の読み込みからバッチ処理、集計の出力までを行います。
// URL単位の失敗ではエラーを返しません。
func runFetch(ctx context.Context, in io.Reader, out io.Writer, client fetch.Getter, opts fetchOptions) error {
	fmt.Fprint(out, pipeline.Greeting+"\n\n")

	input := opts.urls
	if input == "" {
		fmt.Fprint(out, pipeline.Prompt)
		line, err := readURLLine(in)
		if err != nil {
			return err
		}
		input = line
	}

	store := storage.New(opts.saveDir)
	fetcher, err := fetch.New(client, store, fetch.WithMaxContentLength(opts.maxSize))
	if err != nil {
		return fmt.Errorf("Fetcherの初期化エラー: %w", err)
	}

	if opts.verbose {
		log.Printf("保存先: %s, Content-Length 上限: %d バイト", store.Dir(), opts.maxSize)
	}

	printLine := pipeline.Printer(out)
	summary, err := pipeline.Run(ctx, input, store, fetcher, fetch.NewState(), func(res types.URLResult) {
		if opts.verbose && res.Error != nil {
			log.Printf("URL処理エラー [%s]: %v", fetch.KindOf(res.Error), res.Error)
		}
		printLine(res)
	})
	if err != nil {
		return err
	}

	if summary.Total() > 0 {
		pipeline.PrintSummary(out, summary)
	}
	return nil
}

func newFetchCmd(cfg *config.Config) *cobra.Command {
	opts := fetchOptions{}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "カンマ区切りの画像URLを取得し、保存先ディレクトリに保存します",
		Long: `--urls フラグ、または標準入力の一行からカンマ区切りの画像URLを受け取り、一件ずつ順番に取得します。
画像以外のレスポンス、上限を超えるサイズ、同じ内容の画像はスキップされます。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := GetGlobalClient()
			if client == nil {
				return fmt.Errorf("HTTPクライアントの取得に失敗しました")
			}
			opts.verbose = clibase.Flags.Verbose

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runFetch(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), client, opts)
		},
	}

	fetchCmd.Flags().StringVarP(&opts.urls, "urls", "u", "",
		"取得対象のカンマ区切りURLリスト (例: url1,url2,url3)")
	fetchCmd.Flags().StringVarP(&opts.saveDir, "dir", "d", cfg.SaveDir,
		"画像の保存先ディレクトリ")
	fetchCmd.Flags().Int64Var(&opts.maxSize, "max-size", cfg.MaxContentLength,
		"Content-Length ヘッダーで許可する最大バイト数")

	return fetchCmd
}

// 型チェック
var _ fetch.Getter = (*httpclient.Client)(nil)
