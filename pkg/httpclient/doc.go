// Package httpclient はmockhubのAPIを呼び出すHTTPクライアントを提供する。
//
// レスポンスは pkg/response の共通フォーマット {"success", "message", "data"} を前提とし、
// data部分を呼び出し元の値にデシリアライズする。CLIの check コマンドなどが使用する。
package httpclient
