package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/mockhub/internal/store"
)

// openTestDB はテスト用のインメモリDBを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.Open(context.Background(), "file::memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestUsers はbcryptのコストを最小にしたUsersを生成する。
func newTestUsers(t *testing.T) (*Users, *sql.DB) {
	t.Helper()

	db := openTestDB(t)
	return NewUsers(db, bcrypt.MinCost), db
}
