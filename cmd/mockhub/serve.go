package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nao1215/mockhub/internal/config"
	"github.com/nao1215/mockhub/internal/server"
	"github.com/nao1215/mockhub/internal/store"
	"github.com/nao1215/mockhub/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーを起動する",
		Long: `設定ファイルを読み込んでHTTPサーバーを起動する。
SIGINT または SIGTERM を受け取るとグレースフルに停止する。

  $ mockhub serve --config config/mockhub.hcl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log, closer, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()
			// リクエストロガーより前で発生したログの出力先
			zerolog.DefaultContextLogger = &log

			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(ctx, cfg.DB, log)
			if err != nil {
				return err
			}
			defer db.Close()

			srv, err := server.NewServer(ctx, cfg, db, log)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
