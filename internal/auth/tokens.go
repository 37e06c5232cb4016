package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nao1215/mockhub/pkg/middleware"
)

var (
	// ErrTokenInvalid はトークンの形式・署名・発行者が不正な場合のエラー。
	ErrTokenInvalid = errors.New("トークンが無効です")
	// ErrTokenExpired はトークンの有効期限が切れている場合のエラー。
	ErrTokenExpired = errors.New("トークンの有効期限が切れています")
	// ErrTokenRevoked はトークンが失効済み、または記録が存在しない場合のエラー。
	ErrTokenRevoked = errors.New("トークンは失効しています")
)

const (
	// DefaultCollection はトークンテーブルのデフォルト名。
	DefaultCollection = "tokens"
	// DefaultIssuer はJWTのiss。
	DefaultIssuer = "mockhub"
)

// identifierPattern はテーブル名として許可する文字列。
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Claims はJWTトークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// Name はユーザー名。
	Name string `json:"name"`
}

// TokenConfig はTokenServiceの設定。
type TokenConfig struct {
	// Secret はJWT署名用の秘密鍵。
	Secret string
	// Collection はトークンを記録するテーブル名。
	Collection string
	// Expire はトークンの有効期間。
	Expire time.Duration
	// Issuer はJWTのiss。空の場合はDefaultIssuer。
	Issuer string
	// Now は現在時刻を返す関数。テスト用。
	Now func() time.Time
}

// IssuedToken は発行したトークン。
type IssuedToken struct {
	// Token は署名済みのJWT。
	Token string `json:"token"`
	// ID はトークンの一意識別子（jti）。
	ID string `json:"-"`
	// ExpiresAt は有効期限。
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService はトークンの発行・検証・失効を行う。
// middleware.CredentialValidator を実装する。
type TokenService struct {
	db     *sql.DB
	secret []byte
	table  string
	expire time.Duration
	issuer string
	now    func() time.Time
}

var _ middleware.CredentialValidator = (*TokenService)(nil)

// NewTokenService は新しいTokenServiceを生成し、トークンテーブルを作成する。
func NewTokenService(ctx context.Context, db *sql.DB, cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWTの秘密鍵が設定されていません")
	}
	if cfg.Expire <= 0 {
		return nil, fmt.Errorf("トークンの有効期間が不正です: %s", cfg.Expire)
	}
	table := cfg.Collection
	if table == "" {
		table = DefaultCollection
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("トークンテーブル名 %q が不正です", table)
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &TokenService{
		db:     db,
		secret: []byte(cfg.Secret),
		table:  table,
		expire: cfg.Expire,
		issuer: issuer,
		now:    now,
	}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("トークンテーブルの作成に失敗: %w", err)
	}
	return s, nil
}

// ensureTable はトークンテーブルを作成する。
func (s *TokenService) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
	`, s.table))
	return err
}

// Issue はユーザーに対してトークンを発行し、トークンテーブルに記録する。
func (s *TokenService) Issue(ctx context.Context, user *User) (*IssuedToken, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
		},
		Name: user.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}

	expiresAt := claims.ExpiresAt.Time
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, user_id, expires_at, revoked, created_at) VALUES (?, ?, ?, 0, ?)", s.table),
		claims.ID, user.ID, expiresAt.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("トークンの記録に失敗: %w", err)
	}

	return &IssuedToken{Token: signed, ID: claims.ID, ExpiresAt: expiresAt}, nil
}

// Validate はトークンを検証し、利用者の情報を返す。
// 署名・発行者・有効期限を確認した後、トークンテーブルで失効状態を確認する。
func (s *TokenService) Validate(ctx context.Context, raw string) (*middleware.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	var (
		userID    string
		expiresAt int64
		revoked   int
	)
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT user_id, expires_at, revoked FROM %s WHERE id = ?", s.table),
		claims.ID,
	).Scan(&userID, &expiresAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("トークンの取得に失敗: %w", err)
	}
	if revoked != 0 {
		return nil, ErrTokenRevoked
	}
	if userID != claims.Subject {
		return nil, ErrTokenInvalid
	}
	if !s.now().Before(time.Unix(expiresAt, 0)) {
		return nil, ErrTokenExpired
	}

	return &middleware.Principal{
		UserID:  claims.Subject,
		Name:    claims.Name,
		TokenID: claims.ID,
	}, nil
}

// Revoke はトークンを失効させる。
func (s *TokenService) Revoke(ctx context.Context, tokenID string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET revoked = 1 WHERE id = ?", s.table), tokenID,
	)
	if err != nil {
		return fmt.Errorf("トークンの失効に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("トークンの失効結果の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrTokenRevoked
	}
	return nil
}

// PurgeExpired は期限切れまたは失効済みのトークンを削除し、削除した件数を返す。
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ? OR revoked = 1", s.table),
		s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れトークンの削除に失敗: %w", err)
	}
	return res.RowsAffected()
}
