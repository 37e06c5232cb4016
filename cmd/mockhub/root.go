package main

import (
	"github.com/spf13/cobra"
)

// defaultConfigPath は --config が省略された場合の設定ファイル。
const defaultConfigPath = "config/mockhub.hcl"

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mockhub",
		Short:         "mockhub はモックAPIを作成・配信するサーバー",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newRouteCmd(),
		newUserAddCmd(),
		newCheckCmd(),
	)
	return cmd
}

// addConfigFlag は --config フラグを追加する。
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "設定ファイルのパス")
}
