// Package logger はzerologによる構造化ロガーの生成を提供する。
//
// 開発環境では人間が読みやすいコンソール形式、本番環境ではJSON形式で出力する。
// ファイル出力を設定した場合はlumberjackでローテーションする。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format はログの出力形式。
type Format string

const (
	// FormatConsole は人間が読みやすいコンソール形式。
	FormatConsole Format = "console"
	// FormatJSON は1行1レコードのJSON形式。
	FormatJSON Format = "json"
)

// Config はロガーの設定。
type Config struct {
	// Level はログレベル（trace, debug, info, warn, error）。空の場合はinfo。
	Level string
	// Format は標準出力への出力形式。
	Format Format
	// File はログファイルのパス。空の場合はファイルに出力しない。
	File string
	// MaxSizeMB はローテーションするファイルサイズ（MB）。
	MaxSizeMB int
	// MaxBackups は保持する古いログファイルの数。
	MaxBackups int
	// MaxAgeDays は古いログファイルを保持する日数。
	MaxAgeDays int
	// Compress はローテーションしたファイルをgzip圧縮するかどうか。
	Compress bool
	// Output は標準出力の代わりに使用する出力先。テスト用。
	Output io.Writer
}

// New はロガーを生成する。
// 戻り値のio.Closerはファイル出力を閉じるためのもので、終了時に呼び出す。
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("ログレベル %q が不正です: %w", cfg.Level, err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var console io.Writer
	switch cfg.Format {
	case FormatConsole, "":
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	case FormatJSON:
		console = out
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("ログ形式 %q が不正です", cfg.Format)
	}

	var (
		writer io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writer = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
