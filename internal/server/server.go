package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/mockhub/internal/auth"
	"github.com/nao1215/mockhub/internal/config"
	"github.com/nao1215/mockhub/internal/mock"
	"github.com/nao1215/mockhub/internal/upload"
	"github.com/nao1215/mockhub/pkg/middleware"
	"github.com/nao1215/mockhub/pkg/response"
)

// staticMaxAge は本番環境で静的ファイルに付与するキャッシュ期間。
const staticMaxAge = 30 * 24 * time.Hour

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// defaultTrustedProxies はproxyが有効でtrusted_proxiesが未指定の場合に信頼するプロキシ。
var defaultTrustedProxies = []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// Server はmockhubのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg *config.Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// log はサーバー全体で使うロガー。
	log zerolog.Logger

	users   *auth.Users
	tokens  *auth.TokenService
	mocks   *mock.Store
	saver   *upload.Saver
	cleaner *upload.Cleaner
}

// NewServer は新しいサーバーを生成する。dbはマイグレーション済みである必要がある。
func NewServer(ctx context.Context, cfg *config.Config, db *sql.DB, log zerolog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(ctx, db, auth.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Collection: cfg.JWT.Collection,
		Expire:     cfg.JWT.Expire,
	})
	if err != nil {
		return nil, fmt.Errorf("トークンサービスの初期化に失敗: %w", err)
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("アップロードディレクトリの作成に失敗: %w", err)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	if cfg.Proxy {
		proxies := cfg.TrustedProxies
		if len(proxies) == 0 {
			proxies = defaultTrustedProxies
		}
		router.ForwardedByClientIP = true
		if err := router.SetTrustedProxies(proxies); err != nil {
			return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
		}
	} else {
		router.ForwardedByClientIP = false
		if err := router.SetTrustedProxies(nil); err != nil {
			return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
		}
	}

	s := &Server{
		router:  router,
		cfg:     cfg,
		db:      db,
		log:     log,
		users:   auth.NewUsers(db, 0),
		tokens:  tokens,
		mocks:   mock.NewStore(db),
		saver:   upload.NewSaver(cfg.Upload.Dir, cfg.Upload.MaxSize),
		cleaner: upload.NewCleaner(cfg.Upload.Dir, cfg.Upload.Expire, log),
	}
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はミドルウェアチェーンとルーティングを設定する。
// Ginはルート登録時点のミドルウェアを結合するため、登録順がそのままチェーンの順になる。
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery())

	// 静的ファイルはリクエストログや認証より前に返す
	s.setupStatic()

	s.router.Use(middleware.RequestLogger(s.log, s.cfg.IsProduction()))
	s.router.Use(middleware.CORS(s.cfg.CORS))
	s.router.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	s.router.Use(middleware.ErrorReporter())
	s.router.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	s.router.Use(middleware.JWTAuth(s.cfg.Gate.Bypass, s.tokens, s.cfg.JWT.Key))

	// モックAPI
	s.router.Any("/mock/*path", s.handleServeMock())

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())

	api := s.router.Group("/api")
	{
		// ユーザー
		api.POST("/u/register", s.handleRegister())
		api.POST("/u/login", s.handleLogin())
		api.POST("/u/logout", s.handleLogout())
		api.GET("/u", s.handleCurrentUser())

		// モック定義
		api.GET("/mock", s.handleListMocks())
		api.POST("/mock", s.handleCreateMock())
		api.DELETE("/mock/:id", s.handleDeleteMock())

		// アップロード
		api.POST("/upload", s.handleUpload())
	}

	s.router.NoMethod(func(c *gin.Context) {
		response.Fail(c, http.StatusMethodNotAllowed, "許可されていないメソッドです")
	})
	s.router.NoRoute(s.handleView())
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("ヘルスチェックでデータベースに接続できません")
			response.Fail(c, http.StatusServiceUnavailable, "データベースに接続できません")
			return
		}
		response.Success(c, gin.H{"status": "ok", "service": "mockhub"})
	}
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
// 期限切れのアップロードファイルとトークンの削除もctxが有効な間、定期的に実行する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.maintain(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("env", s.cfg.Env).Msg("mockhubを起動します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("mockhubを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// maintain はupload.sweep_intervalごとにメンテナンスを実行する。
func (s *Server) maintain(ctx context.Context) {
	s.runMaintenance(ctx)

	ticker := time.NewTicker(s.cfg.Upload.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runMaintenance(ctx)
		}
	}
}

// runMaintenance は期限切れのアップロードファイルとトークンを削除する。
func (s *Server) runMaintenance(ctx context.Context) {
	if _, err := s.cleaner.Sweep(time.Now()); err != nil {
		s.log.Error().Err(err).Msg("アップロードファイルの削除に失敗")
	}
	n, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("期限切れトークンの削除に失敗")
		}
		return
	}
	if n > 0 {
		s.log.Info().Int64("purged", n).Msg("期限切れトークンを削除しました")
	}
}
