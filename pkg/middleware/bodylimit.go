package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BodyLimit はリクエストボディのサイズを制限するGinミドルウェアを返す。
// 上限を超えたボディはバインド時にエラーとなる。multipart/form-data は
// アップロード処理側で上限を設けるため対象外とする。
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil && !isMultipart(c.ContentType()) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(contentType, "multipart/")
}
