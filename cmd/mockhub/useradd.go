package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nao1215/mockhub/internal/auth"
	"github.com/nao1215/mockhub/internal/config"
	"github.com/nao1215/mockhub/internal/store"
)

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		password   string
	)
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "ユーザーを作成する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" || password == "" {
				return errors.New("--name と --password は必須です")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := store.Open(cmd.Context(), cfg.DB, zerolog.Nop())
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := auth.NewUsers(db, 0).Create(cmd.Context(), name, password)
			if err != nil {
				return fmt.Errorf("ユーザーの作成に失敗: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ユーザーを作成しました: id=%s name=%s\n", user.ID, user.Name)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "", "ユーザー名")
	cmd.Flags().StringVar(&password, "password", "", "パスワード")
	return cmd
}
