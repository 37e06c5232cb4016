// Package gate はリクエストゲート（認証要否の判定）を提供する。
//
// リクエストパスの先頭セグメントが保護プレフィックスの正規表現に一致し、
// かつ公開エンドポイントのパステンプレートのいずれにも一致しない場合にのみ
// 認証を要求する。判定は設定とパスだけから決まる純粋関数であり、
// リクエスト間で状態を共有しない。
package gate
