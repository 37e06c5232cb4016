package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nao1215/mockhub/internal/config"
)

func newRouteCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "route PATH...",
		Short: "パスごとに認証が必要かどうかを表示する",
		Long: `設定の router_prefix.api と public_apis に従って、各パスに認証が必要かを判定する。

  $ mockhub route /api/u/login /api/mock /mock/users/1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			rows := make([][]any, 0, len(args))
			for _, path := range args {
				d := cfg.Gate.Explain(path)
				rows = append(rows, []any{d.Path, d.Top, d.Rule.String(), strconv.FormatBool(d.RequiresAuth()), d.Pattern})
			}

			table := tablewriter.NewTable(cmd.OutOrStdout())
			table.Header("Path", "Top", "Rule", "Auth", "Pattern")
			if err := table.Bulk(rows); err != nil {
				return err
			}
			return table.Render()
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
