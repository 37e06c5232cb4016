// Package middleware はGinベースのHTTPサーバーで使用する共通ミドルウェアを提供する。
//
// リクエストゲート（JWT認証）、リクエストIDとアクセスログ、パニックリカバリ、
// エラーレスポンスの描画、CORS設定、ボディサイズ制限を含む。
package middleware
