package middleware

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/mockhub/pkg/response"
)

// messageInternalError は内部エラー時にクライアントへ返すメッセージ。
const messageInternalError = "内部サーバーエラーが発生しました"

// HTTPError はHTTPステータスコードを伴うエラー。
// ハンドラーは c.Error(NewHTTPError(...)) でErrorReporterに処理を委ねる。
type HTTPError struct {
	// Status はクライアントに返すステータスコード。
	Status int
	// Message はクライアントに返すメッセージ。
	Message string
	// Err は原因となったエラー。ログにのみ出力する。
	Err error
}

// NewHTTPError は新しいHTTPErrorを生成する。
func NewHTTPError(status int, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Message: message, Err: err}
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrorReporter はハンドラーが c.Error で記録したエラーを処理するGinミドルウェアを返す。
// エラーをログに出力し、レスポンスが未送信であればエラーレスポンスを返す。
func ErrorReporter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		logger := zerolog.Ctx(c.Request.Context())
		for _, e := range c.Errors {
			logger.Error().Err(e.Err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("リクエスト処理中にエラーが発生")
		}

		if c.Writer.Written() {
			return
		}

		status, message := http.StatusInternalServerError, messageInternalError
		var httpErr *HTTPError
		if errors.As(c.Errors.Last().Err, &httpErr) {
			status, message = httpErr.Status, httpErr.Message
		}
		renderError(c, status, message)
	}
}

// errorPage はHTMLを要求するクライアント向けのエラーページ。
const errorPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%d %s</title></head>
<body><h1>%d %s</h1><p>%s</p></body>
</html>
`

// renderError はAcceptヘッダーに応じた形式でエラーレスポンスを返し、チェーンを中断する。
func renderError(c *gin.Context, status int, message string) {
	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML, gin.MIMEPlain) {
	case gin.MIMEHTML:
		text := html.EscapeString(http.StatusText(status))
		body := fmt.Sprintf(errorPage, status, text, status, text, html.EscapeString(message))
		c.Data(status, "text/html; charset=utf-8", []byte(body))
		c.Abort()
	case gin.MIMEPlain:
		c.Data(status, "text/plain; charset=utf-8", []byte(message))
		c.Abort()
	default:
		response.Abort(c, status, message)
	}
}
