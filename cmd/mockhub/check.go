package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mockhub/pkg/httpclient"
)

func newCheckCmd() *cobra.Command {
	var (
		addr    string
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "起動中のサーバーのヘルスチェックを行う",
		Long: `GET /health でサーバーの状態を確認する。--token を指定した場合は
GET /api/u でトークンが有効かどうかも確認する。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := httpclient.New(addr, httpclient.WithTimeout(timeout))
			out := cmd.OutOrStdout()

			var health struct {
				Status string `json:"status"`
			}
			if err := client.GetJSON(cmd.Context(), "/health", &health); err != nil {
				return fmt.Errorf("ヘルスチェックに失敗: %w", err)
			}
			fmt.Fprintf(out, "health: %s\n", health.Status)

			if token == "" {
				return nil
			}
			var user struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}
			ctx := httpclient.WithToken(cmd.Context(), token)
			if err := client.GetJSON(ctx, "/api/u", &user); err != nil {
				return fmt.Errorf("トークンの確認に失敗: %w", err)
			}
			fmt.Fprintf(out, "user: %s (%s)\n", user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:7300", "サーバーのURL")
	cmd.Flags().StringVar(&token, "token", "", "確認するBearerトークン")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "タイムアウト")
	return cmd
}
