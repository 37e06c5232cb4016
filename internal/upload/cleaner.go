package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner は保存期間を過ぎたアップロードファイルを削除する。
type Cleaner struct {
	dir    string
	expire time.Duration
	log    zerolog.Logger
}

// NewCleaner は新しいCleanerを生成する。
func NewCleaner(dir string, expire time.Duration, log zerolog.Logger) *Cleaner {
	return &Cleaner{dir: dir, expire: expire, log: log}
}

// Sweep は最終更新からexpire以上経過したファイルを削除し、削除した件数を返す。
// ディレクトリと "." で始まるファイルは対象外。
func (c *Cleaner) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("アップロードディレクトリの読み込みに失敗: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < c.expire {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Err(err).Str("file", e.Name()).Msg("アップロードファイルの削除に失敗")
			continue
		}
		removed++
	}

	if removed > 0 {
		c.log.Info().Int("removed", removed).Str("dir", c.dir).Msg("期限切れのアップロードファイルを削除しました")
	}
	return removed, nil
}
