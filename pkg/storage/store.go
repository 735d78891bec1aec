package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir は画像の保存先ディレクトリ (カレントディレクトリからの相対パス) です。
	DefaultDir = "Fetched_Images"
	// FallbackFileName はURLのパスからファイル名を導けない場合に使う名前です。
	FallbackFileName = "downloaded_image.jpg"

	dirPermissions  = 0o755
	filePermissions = 0o644
)

// unsafeChars はファイル名に使えない文字を "_" に置き換えます。
var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Store は保存先ディレクトリへのファイル書き込みを担当します。
type Store struct {
	dir string
}

// New は dir を保存先とする Store を生成します。空文字の場合は DefaultDir を使います。
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir は保存先ディレクトリを作成します。既に存在していてもエラーにしません。
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました (%s): %w", s.dir, err)
	}
	return nil
}

// Path は保存先ディレクトリ直下のファイルパスを返します。
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, SanitizeFileName(name))
}

// Save はボディをファイルに書き込み、保存したパスを返します。
// 既存ファイルは上書きされます。書き込みはアトミックではありません。
func (s *Store) Save(name string, body []byte) (string, error) {
	path := s.Path(name)
	if err := os.WriteFile(path, body, filePermissions); err != nil {
		return "", fmt.Errorf("ファイルの書き込みに失敗しました (%s): %w", path, err)
	}
	return path, nil
}

// FileNameFromURL はURLのパスの最後のセグメントをファイル名として返します。
// パスが空、もしくは "/" で終わる場合は FallbackFileName を返します。
func FileNameFromURL(rawURL string) string {
	if _, err := url.Parse(rawURL); err != nil {
		return FallbackFileName
	}

	// 入力されたままのパスを使う。再エスケープもデコードもしないため %2F で区切りが増えることはない
	p := rawPath(rawURL)
	name := p[strings.LastIndex(p, "/")+1:]
	return SanitizeFileName(name)
}

// rawPath はURL文字列からホストの後ろ、クエリ・フラグメントの前の部分を取り出します。
func rawPath(rawURL string) string {
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+len("://"):]
		j := strings.IndexByte(s, '/')
		if j < 0 {
			return ""
		}
		return s[j:]
	}
	return s
}

// SanitizeFileName は name を保存先ディレクトリ内に収まる単一のファイル名に変換します。
func SanitizeFileName(name string) string {
	name = unsafeChars.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)

	switch name {
	case "", ".", "..":
		return FallbackFileName
	}
	return name
}
