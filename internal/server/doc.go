// Package server はmockhubのHTTPサーバーを提供する。
//
// ミドルウェアは以下の順で一本のチェーンとして登録する。
//
//	Recovery → favicon・静的ファイル → リクエストID・アクセスログ →
//	CORS・セキュリティヘッダー → エラーレポーター → ボディサイズ制限 →
//	JWTAuth（リクエストゲート） → /mock, /api のルート → ビューのフォールバック
//
// JWTAuthは設定の router_prefix.api と public_apis から構築した gate.Policy で
// 認証の要否を判定する。認証に失敗したリクエストは401で終了し、以降のハンドラーは実行されない。
package server
