package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/mockhub/pkg/response"
)

// Principal は検証済みの認証情報から得られる利用者の情報。
type Principal struct {
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Name はユーザー名。
	Name string `json:"name"`
	// TokenID はトークンの一意識別子（jti）。ログアウト時の失効に使用する。
	TokenID string `json:"-"`
}

// CredentialValidator はBearerトークンを検証する外部コンポーネント。
// 署名・有効期限・失効状態の確認は実装側の責務とする。
type CredentialValidator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

// ErrMissingCredential はAuthorizationヘッダーが無い場合のエラー。
var ErrMissingCredential = errors.New("Authorizationヘッダーが必要です")

// ErrMalformedCredential はBearer形式でない場合のエラー。
var ErrMalformedCredential = errors.New("Bearer トークン形式が不正です")

// DefaultPrincipalKey はPrincipalをGinコンテキストに格納するデフォルトのキー。
const DefaultPrincipalKey = "user"

// headerKeyUserID は認証済みユーザーIDをレスポンスに付与するHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// JWTAuth はリクエストゲートとして動作するGinミドルウェアを返す。
//
// bypassがリクエストパスに対してtrueを返した場合はトークンを検証せずに通過させる。
// それ以外の場合は "Authorization: Bearer <token>" をvalidatorで検証し、
// 失敗したら401を返してチェーンを終了する。成功した場合はPrincipalを
// keyでコンテキストに設定する。keyが空の場合はDefaultPrincipalKeyを使う。
func JWTAuth(bypass func(path string) bool, validator CredentialValidator, key string) gin.HandlerFunc {
	if key == "" {
		key = DefaultPrincipalKey
	}
	return func(c *gin.Context) {
		if bypass != nil && bypass(c.Request.URL.Path) {
			c.Next()
			return
		}

		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := validator.Validate(c.Request.Context(), token)
		if err != nil || principal == nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).
				Str("path", c.Request.URL.Path).
				Msg("トークンの検証に失敗")
			response.Abort(c, http.StatusUnauthorized, "トークンが無効です")
			return
		}

		c.Set(key, principal)
		c.Set("user_id", principal.UserID)
		c.Header(headerKeyUserID, principal.UserID)
		c.Next()
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", ErrMalformedCredential
	}
	return strings.TrimSpace(token), nil
}

// GetPrincipal はGinコンテキストからPrincipalを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetPrincipal(c *gin.Context, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultPrincipalKey
	}
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
