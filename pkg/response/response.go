// Package response はAPIレスポンスの共通フォーマットを提供する。
//
// すべてのJSONレスポンスは {"success": bool, "message": string, "data": any}
// の形をとる。ハンドラーとミドルウェアはこのパッケージを通してレスポンスを書き込む。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body はAPIレスポンスの共通エンベロープ。
type Body struct {
	// Success は処理が成功したかどうか。
	Success bool `json:"success"`
	// Message はクライアント向けのメッセージ。
	Message string `json:"message"`
	// Data はレスポンスの本体。失敗時は省略される。
	Data any `json:"data,omitempty"`
}

// messageSuccess は成功時のデフォルトメッセージ。
const messageSuccess = "success"

// Success は200で成功レスポンスを返す。
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus は指定したステータスコードで成功レスポンスを返す。
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Message: messageSuccess, Data: data})
}

// Fail は失敗レスポンスを返す。後続のハンドラーは中断しない。
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Body{Success: false, Message: message})
}

// Abort は失敗レスポンスを返し、後続のハンドラーの実行を中断する。
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Message: message})
}
