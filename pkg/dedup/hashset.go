package dedup

import (
	"crypto/md5"
	"encoding/hex"
)

// HashSet は一回の実行中に保存したコンテンツのハッシュを保持します。
// 永続化はされず、単一のゴルーチンからのみ利用される前提です。
type HashSet struct {
	hashes map[string]struct{}
}

// NewHashSet は空の HashSet を生成します。
func NewHashSet() *HashSet {
	return &HashSet{hashes: make(map[string]struct{})}
}

// Sum はボディの MD5 ダイジェストを16進文字列で返します。
func Sum(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// Add はハッシュを登録します。既に登録済みの場合は false を返します。
func (s *HashSet) Add(hash string) bool {
	if s.hashes == nil {
		s.hashes = make(map[string]struct{})
	}
	if _, ok := s.hashes[hash]; ok {
		return false
	}
	s.hashes[hash] = struct{}{}
	return true
}

func (s *HashSet) Contains(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

func (s *HashSet) Len() int {
	return len(s.hashes)
}
