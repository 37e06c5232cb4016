// Package upload はアップロードファイルの保存と期限切れファイルの削除を提供する。
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix はアップロードファイルを配信するURLのプレフィックス。
const URLPrefix = "/upload"

var (
	// ErrEmptyFile は空のファイルがアップロードされた場合のエラー。
	ErrEmptyFile = errors.New("ファイルが空です")
	// ErrTooLarge はファイルサイズが上限を超えた場合のエラー。
	ErrTooLarge = errors.New("ファイルサイズが上限を超えています")
)

// extPattern は保存時に残す拡張子。
var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// File は保存したファイルの情報。
type File struct {
	// Name は保存したファイル名。
	Name string `json:"name"`
	// OriginalName はアップロード時のファイル名。
	OriginalName string `json:"original_name"`
	// Size はバイト数。
	Size int64 `json:"size"`
	// URL は配信URL。
	URL string `json:"url"`
}

// Saver はアップロードファイルを保存する。
type Saver struct {
	dir     string
	maxSize int64
}

// NewSaver は新しいSaverを生成する。maxSizeが0以下の場合はサイズを制限しない。
func NewSaver(dir string, maxSize int64) *Saver {
	return &Saver{dir: dir, maxSize: maxSize}
}

// Dir は保存先ディレクトリを返す。
func (s *Saver) Dir() string {
	return s.dir
}

// Save はファイルをランダムな名前で保存する。拡張子は元のファイル名から引き継ぐ。
func (s *Saver) Save(fh *multipart.FileHeader) (*File, error) {
	if fh.Size == 0 {
		return nil, ErrEmptyFile
	}
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return nil, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルのオープンに失敗: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("アップロードディレクトリの作成に失敗: %w", err)
	}

	name := uuid.NewString() + sanitizeExt(fh.Filename)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ファイルの作成に失敗: %w", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return nil, fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}

	return &File{
		Name:         name,
		OriginalName: filepath.Base(fh.Filename),
		Size:         size,
		URL:          URLPrefix + "/" + name,
	}, nil
}

// sanitizeExt はファイル名から安全な拡張子だけを取り出す。
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
