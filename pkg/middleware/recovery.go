package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、Acceptヘッダーに応じた形式で500エラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("[PANIC] リクエスト処理中にパニックが発生")
				if c.Writer.Written() {
					c.Abort()
					return
				}
				renderError(c, http.StatusInternalServerError, messageInternalError)
			}
		}()
		c.Next()
	}
}
