// mockhubのエントリポイント。
// モックAPIサーバーの起動と、設定の確認・ユーザー作成・ヘルスチェックのコマンドを提供する。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
