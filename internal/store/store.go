// Package store はSQLiteデータベースへの接続とスキーマ管理を提供する。
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nao1215/mockhub/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// DefaultDSN は設定でdbが省略された場合に使用するDSN。
const DefaultDSN = "file:mockhub.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open はSQLiteデータベースに接続し、マイグレーションを適用する。
// インメモリDBの場合は接続ごとに別のDBになるため、接続数を1に制限する。
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if IsMemory(dsn) {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	if _, err := migration.Run(ctx, db, migrations, "migrations", log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return db, nil
}

// IsMemory はDSNがインメモリDBを指すかを返す。
func IsMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
