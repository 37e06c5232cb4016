package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSミドルウェアの設定。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン。空の場合はリクエストのオリジンをそのまま許可する。
	// Credentialsと併用すると任意のオリジンに資格情報付きのアクセスを許すことになる。
	AllowedOrigins []string
	// Methods は許可するHTTPメソッド。
	Methods []string
	// Credentials はCookie等の資格情報の送信を許可するかどうか。
	Credentials bool
	// MaxAge はプリフライトの結果をキャッシュしてよい期間。
	MaxAge time.Duration
}

// defaultCORSMethods はMethodsが空の場合に許可するメソッド。
var defaultCORSMethods = []string{"GET", "HEAD", "PUT", "POST", "DELETE", "PATCH"}

// defaultCORSHeaders はプリフライトで要求ヘッダーが無い場合に許可するヘッダー。
const defaultCORSHeaders = "Authorization, Content-Type"

// CORS はクロスオリジンリクエストを許可するGinミドルウェアを返す。
// OPTIONSリクエストは204で応答し、後続のハンドラーを実行しない。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originsSet[o] = struct{}{}
	}
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	allowMethods := strings.Join(methods, ",")
	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Writer.Header().Add("Vary", "Origin")

		if origin != "" && originAllowed(originsSet, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", allowMethods)
			if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); reqHeaders != "" {
				c.Header("Access-Control-Allow-Headers", reqHeaders)
			} else {
				c.Header("Access-Control-Allow-Headers", defaultCORSHeaders)
			}
			if cfg.Credentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", maxAge)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(set map[string]struct{}, origin string) bool {
	if len(set) == 0 {
		return true
	}
	if _, ok := set["*"]; ok {
		return true
	}
	_, ok := set[origin]
	return ok
}
