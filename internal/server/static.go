package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/mockhub/internal/upload"
	"github.com/nao1215/mockhub/pkg/response"
)

// setupStatic はfaviconと静的ファイルのルートを登録する。
// dist と public は本番環境でのみ長期間キャッシュさせる。
func (s *Server) setupStatic() {
	if _, err := os.Stat(s.cfg.Static.Favicon); err == nil {
		s.router.StaticFile("/favicon.ico", s.cfg.Static.Favicon)
	}

	var maxAge int
	if s.cfg.IsProduction() {
		maxAge = int(staticMaxAge.Seconds())
	}
	assets := s.router.Group("/", cacheControl(maxAge))
	assets.Static("/dist", s.cfg.Static.DistDir)
	assets.Static("/public", s.cfg.Static.PublicDir)

	s.router.Static(upload.URLPrefix, s.saver.Dir())
}

// cacheControl はCache-Controlヘッダーを付与するGinミドルウェアを返す。
func cacheControl(maxAge int) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// handleView はどのルートにも一致しなかったリクエストを処理するハンドラを返す。
// HTMLを要求するGET/HEADには dist/index.html を返し、それ以外は404を返す。
func (s *Server) handleView() gin.HandlerFunc {
	index := filepath.Join(s.cfg.Static.DistDir, "index.html")
	return func(c *gin.Context) {
		method := c.Request.Method
		if (method == http.MethodGet || method == http.MethodHead) &&
			c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
			if info, err := os.Stat(index); err == nil && !info.IsDir() {
				c.Header("Cache-Control", "no-cache")
				c.File(index)
				return
			}
		}
		response.Fail(c, http.StatusNotFound, "ページが見つかりません")
	}
}
