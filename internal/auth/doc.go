// Package auth はユーザー管理とトークンの発行・検証を提供する。
//
// トークンはHS256で署名したJWTで、発行時にトークンテーブルへ記録する。
// 検証では署名と有効期限に加えてテーブルの状態（失効済みかどうか）も確認するため、
// ログアウトしたトークンは有効期限内でも利用できない。
package auth
