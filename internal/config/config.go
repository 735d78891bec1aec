package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix は環境変数のプレフィックスです (例: IMAGE_FETCHER_SAVE_DIR)。
const EnvPrefix = "IMAGE_FETCHER"

// Config は環境変数から読み込むアプリケーション設定です。
// CLIフラグの既定値として使われ、フラグが指定された場合はそちらが優先されます。
type Config struct {
	// SaveDir maps to IMAGE_FETCHER_SAVE_DIR.
	SaveDir string `envconfig:"SAVE_DIR" default:"Fetched_Images"`

	// TimeoutSec maps to IMAGE_FETCHER_TIMEOUT_SEC.
	TimeoutSec int `envconfig:"TIMEOUT_SEC" default:"10"`

	// MaxRetries maps to IMAGE_FETCHER_MAX_RETRIES. 0 なら再試行しない。
	MaxRetries uint64 `envconfig:"MAX_RETRIES" default:"0"`

	// MaxContentLength maps to IMAGE_FETCHER_MAX_CONTENT_LENGTH.
	MaxContentLength int64 `envconfig:"MAX_CONTENT_LENGTH" default:"5242880"`
}

// Load は .env (存在する場合) と環境変数から Config を組み立てます。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env が無いのは通常のケース
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("警告: .env ファイルの読み込みに失敗しました: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
