package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists はユーザー名が既に使用されている場合のエラー。
	ErrUserExists = errors.New("ユーザー名は既に使用されています")
	// ErrUserNotFound はユーザーが存在しない場合のエラー。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrInvalidCredentials はユーザー名またはパスワードが誤っている場合のエラー。
	ErrInvalidCredentials = errors.New("ユーザー名またはパスワードが正しくありません")
	// ErrInvalidName はユーザー名が不正な場合のエラー。
	ErrInvalidName = errors.New("ユーザー名は1文字以上32文字以下で指定してください")
	// ErrInvalidPassword はパスワードが不正な場合のエラー。
	ErrInvalidPassword = errors.New("パスワードは6文字以上72バイト以下で指定してください")
)

const (
	maxNameLength     = 32
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

// User はユーザー。パスワードハッシュは含まない。
type User struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Name はログインに使用するユーザー名。
	Name string `json:"name"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `json:"created_at"`
}

// Users はusersテーブルへのアクセスを提供する。
type Users struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

// NewUsers は新しいUsersを生成する。costが0以下の場合はbcrypt.DefaultCostを使う。
func NewUsers(db *sql.DB, cost int) *Users {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Users{db: db, cost: cost, now: time.Now}
}

// Create はユーザーを登録する。
func (u *Users) Create(ctx context.Context, name, password string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}
	if utf8.RuneCountInString(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return nil, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	user := &User{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: u.now().UTC().Truncate(time.Second),
	}
	_, err = u.db.ExecContext(ctx,
		"INSERT INTO users (id, name, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Name, string(hash), user.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return user, nil
}

// Authenticate はユーザー名とパスワードを検証し、ユーザーを返す。
func (u *Users) Authenticate(ctx context.Context, name, password string) (*User, error) {
	var (
		user      User
		hash      string
		createdAt int64
	)
	err := u.db.QueryRowContext(ctx,
		"SELECT id, name, password_hash, created_at FROM users WHERE name = ?",
		strings.TrimSpace(name),
	).Scan(&user.ID, &user.Name, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

// Get はIDでユーザーを取得する。
func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := u.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

// isUniqueViolation はSQLiteの一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
