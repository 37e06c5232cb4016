// Package config はHCL形式の設定ファイルを読み込み、サーバーの設定を構築する。
//
// 設定はLoadで一度だけ構築し、以降は変更せずにポインタで受け渡す。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/nao1215/mockhub/internal/gate"
	"github.com/nao1215/mockhub/pkg/logger"
	"github.com/nao1215/mockhub/pkg/middleware"
)

const (
	// EnvDevelopment は開発環境。
	EnvDevelopment = "development"
	// EnvProduction は本番環境。
	EnvProduction = "production"
)

// 設定を上書きする環境変数。
const (
	EnvPort      = "PORT"
	EnvJWTSecret = "JWT_SECRET"
	EnvMode      = "MOCKHUB_ENV"
)

// 既定値。
const (
	defaultPort          = 7300
	defaultRouterPrefix  = "^/api"
	defaultJWTKey        = middleware.DefaultPrincipalKey
	defaultJWTCollection = "tokens"
	defaultJWTExpire     = "14d"
	defaultUploadDir     = "upload"
	defaultUploadExpire  = "1d"
	defaultSweepInterval = "1h"
	defaultUploadMaxMB   = 2
	defaultBodyLimitMB   = 1
	defaultCORSMaxAge    = "30d"
	defaultDistDir       = "dist"
	defaultPublicDir     = "public"
	defaultFavicon       = "public/images/icon.png"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 28
)

// defaultPublicAPIs はpublic_apisが省略された場合の公開エンドポイント。
var defaultPublicAPIs = []string{"/api/u/login", "/api/u/register"}

// Config はサーバーの設定。Loadの後に変更してはならない。
type Config struct {
	// Port はリッスンポート。
	Port int
	// Proxy はX-Forwarded-*ヘッダーを信頼するかどうか。
	Proxy bool
	// TrustedProxies はProxyが有効な場合に信頼するプロキシのCIDR。
	TrustedProxies []string
	// DB はSQLiteのDSN。
	DB string
	// Env は実行環境（development または production）。
	Env string
	// RouterPrefix は認証が必要なパスの先頭セグメントに一致する正規表現。
	RouterPrefix string
	// PublicAPIs はRouterPrefixに一致しても認証が不要なパステンプレート。
	PublicAPIs []string
	// BodyLimit はリクエストボディの上限（バイト）。
	BodyLimit int64
	// JWT はトークンの設定。
	JWT JWTConfig
	// Upload はアップロードの設定。
	Upload UploadConfig
	// Static は静的ファイルの設定。
	Static StaticConfig
	// CORS はCORSの設定。
	CORS middleware.CORSConfig
	// Log はロガーの設定。
	Log logger.Config
	// Gate はRouterPrefixとPublicAPIsからコンパイルした認証ポリシー。
	Gate *gate.Policy
}

// JWTConfig はトークンの設定。
type JWTConfig struct {
	Secret     string
	Key        string
	Collection string
	Expire     time.Duration
}

// UploadConfig はアップロードの設定。
type UploadConfig struct {
	// Dir は保存先ディレクトリ。
	Dir string
	// Expire はファイルを保持する期間。
	Expire time.Duration
	// SweepInterval は期限切れファイルを削除する間隔。
	SweepInterval time.Duration
	// MaxSize はファイルサイズの上限（バイト）。
	MaxSize int64
}

// StaticConfig は静的ファイルの設定。
type StaticConfig struct {
	DistDir   string
	PublicDir string
	Favicon   string
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr はhttp.Serverに渡すリッスンアドレスを返す。
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// fileConfig は設定ファイルの内容。
type fileConfig struct {
	Port           int          `hcl:"port,optional"`
	Proxy          bool         `hcl:"proxy,optional"`
	TrustedProxies []string     `hcl:"trusted_proxies,optional"`
	DB             string       `hcl:"db,optional"`
	Env            string       `hcl:"env,optional"`
	PublicAPIs     []string     `hcl:"public_apis,optional"`
	BodyLimitMB    int          `hcl:"body_limit_mb,optional"`
	RouterPrefix   *prefixBlock `hcl:"router_prefix,block"`
	JWT            *jwtBlock    `hcl:"jwt,block"`
	Upload         *uploadBlock `hcl:"upload,block"`
	Static         *staticBlock `hcl:"static,block"`
	CORS           *corsBlock   `hcl:"cors,block"`
	Log            *logBlock    `hcl:"log,block"`
}

// prefixBlock のAPIは省略時のみ既定値を使う。空文字を明示した場合はエラーにする。
type prefixBlock struct {
	API *string `hcl:"api,optional"`
}

type jwtBlock struct {
	Secret     string `hcl:"secret,optional"`
	Key        string `hcl:"key,optional"`
	Collection string `hcl:"collection,optional"`
	Expire     string `hcl:"expire,optional"`
}

type uploadBlock struct {
	Dir           string `hcl:"dir,optional"`
	Expire        string `hcl:"expire,optional"`
	SweepInterval string `hcl:"sweep_interval,optional"`
	MaxSizeMB     int    `hcl:"max_size_mb,optional"`
}

type staticBlock struct {
	DistDir   string `hcl:"dist_dir,optional"`
	PublicDir string `hcl:"public_dir,optional"`
	Favicon   string `hcl:"favicon,optional"`
}

type corsBlock struct {
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
	Methods        []string `hcl:"methods,optional"`
	Credentials    *bool    `hcl:"credentials,optional"`
	MaxAge         string   `hcl:"max_age,optional"`
}

type logBlock struct {
	Level      string `hcl:"level,optional"`
	Format     string `hcl:"format,optional"`
	File       string `hcl:"file,optional"`
	MaxSizeMB  int    `hcl:"max_size_mb,optional"`
	MaxBackups int    `hcl:"max_backups,optional"`
	MaxAgeDays int    `hcl:"max_age_days,optional"`
	Compress   bool   `hcl:"compress,optional"`
}

// Load は設定ファイルを読み込み、環境変数で上書きした設定を返す。
// 相対パスは設定ファイルのあるディレクトリを基準に解決する。
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	return Parse(path, src, os.Getenv)
}

// Parse はHCLを解析して設定を構築する。filenameの拡張子は .hcl である必要がある。
// getenvには環境変数の取得関数を渡す。
func Parse(filename string, src []byte, getenv func(string) string) (*Config, error) {
	var f fileConfig
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return build(&f, filepath.Dir(filename), getenv)
}

// build は設定ファイルの内容に既定値と環境変数を適用して設定を構築する。
func build(f *fileConfig, baseDir string, getenv func(string) string) (*Config, error) {
	if f.RouterPrefix == nil {
		f.RouterPrefix = &prefixBlock{}
	}
	if f.JWT == nil {
		f.JWT = &jwtBlock{}
	}
	if f.Upload == nil {
		f.Upload = &uploadBlock{}
	}
	if f.Static == nil {
		f.Static = &staticBlock{}
	}
	if f.CORS == nil {
		f.CORS = &corsBlock{}
	}
	if f.Log == nil {
		f.Log = &logBlock{}
	}

	cfg := &Config{
		Port:           f.Port,
		Proxy:          f.Proxy,
		TrustedProxies: f.TrustedProxies,
		DB:             f.DB,
		Env:            getEnvOr(getenv, EnvMode, strings.ToLower(f.Env)),
		RouterPrefix:   defaultRouterPrefix,
		PublicAPIs:     f.PublicAPIs,
	}
	if f.RouterPrefix.API != nil {
		cfg.RouterPrefix = *f.RouterPrefix.API
	}
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.PublicAPIs == nil {
		cfg.PublicAPIs = append([]string(nil), defaultPublicAPIs...)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("環境変数 %s が不正です: %w", EnvPort, err)
		}
		cfg.Port = port
	}
	if f.BodyLimitMB == 0 {
		f.BodyLimitMB = defaultBodyLimitMB
	}
	cfg.BodyLimit = int64(f.BodyLimitMB) << 20

	var err error
	cfg.JWT = JWTConfig{
		Secret:     getEnvOr(getenv, EnvJWTSecret, f.JWT.Secret),
		Key:        orDefault(f.JWT.Key, defaultJWTKey),
		Collection: orDefault(f.JWT.Collection, defaultJWTCollection),
	}
	if cfg.JWT.Expire, err = ParseDuration(orDefault(f.JWT.Expire, defaultJWTExpire)); err != nil {
		return nil, fmt.Errorf("jwt.expire: %w", err)
	}

	if f.Upload.MaxSizeMB == 0 {
		f.Upload.MaxSizeMB = defaultUploadMaxMB
	}
	cfg.Upload = UploadConfig{
		Dir:     resolvePath(baseDir, orDefault(f.Upload.Dir, defaultUploadDir)),
		MaxSize: int64(f.Upload.MaxSizeMB) << 20,
	}
	if cfg.Upload.Expire, err = ParseDuration(orDefault(f.Upload.Expire, defaultUploadExpire)); err != nil {
		return nil, fmt.Errorf("upload.expire: %w", err)
	}
	if cfg.Upload.SweepInterval, err = ParseDuration(orDefault(f.Upload.SweepInterval, defaultSweepInterval)); err != nil {
		return nil, fmt.Errorf("upload.sweep_interval: %w", err)
	}

	cfg.Static = StaticConfig{
		DistDir:   resolvePath(baseDir, orDefault(f.Static.DistDir, defaultDistDir)),
		PublicDir: resolvePath(baseDir, orDefault(f.Static.PublicDir, defaultPublicDir)),
		Favicon:   resolvePath(baseDir, orDefault(f.Static.Favicon, defaultFavicon)),
	}

	cfg.CORS = middleware.CORSConfig{
		AllowedOrigins: f.CORS.AllowedOrigins,
		Methods:        f.CORS.Methods,
		Credentials:    f.CORS.Credentials == nil || *f.CORS.Credentials,
	}
	if cfg.CORS.MaxAge, err = ParseDuration(orDefault(f.CORS.MaxAge, defaultCORSMaxAge)); err != nil {
		return nil, fmt.Errorf("cors.max_age: %w", err)
	}

	cfg.Log = buildLog(f.Log, baseDir, cfg.IsProduction())

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// 不正なパターンは起動時に検出する
	cfg.Gate, err = gate.NewPolicy(cfg.RouterPrefix, cfg.PublicAPIs)
	if err != nil {
		return nil, fmt.Errorf("認証ポリシーの構築に失敗: %w", err)
	}
	return cfg, nil
}

// buildLog はlogブロックからロガーの設定を構築する。
// レベルと形式は省略時に実行環境に応じて決まる。
func buildLog(b *logBlock, baseDir string, production bool) logger.Config {
	cfg := logger.Config{
		Level:      b.Level,
		Format:     logger.Format(strings.ToLower(b.Format)),
		MaxSizeMB:  b.MaxSizeMB,
		MaxBackups: b.MaxBackups,
		MaxAgeDays: b.MaxAgeDays,
		Compress:   b.Compress,
	}
	if b.File != "" {
		cfg.File = resolvePath(baseDir, b.File)
	}
	if cfg.Level == "" {
		cfg.Level = "debug"
		if production {
			cfg.Level = "info"
		}
	}
	if cfg.Format == "" {
		cfg.Format = logger.FormatConsole
		if production {
			cfg.Format = logger.FormatJSON
		}
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = defaultLogMaxSizeMB
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = defaultLogMaxBackups
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = defaultLogMaxAgeDays
	}
	return cfg
}

// validate は設定値を検証する。
func (c *Config) validate() error {
	var errs []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env %q は development または production を指定してください", c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d が範囲外です", c.Port))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, errors.New("body_limit_mb は正の値を指定してください"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, fmt.Errorf("jwt.secret または環境変数 %s を設定してください", EnvJWTSecret))
	}
	if c.JWT.Expire <= 0 {
		errs = append(errs, errors.New("jwt.expire は正の期間を指定してください"))
	}
	if c.Upload.Expire <= 0 {
		errs = append(errs, errors.New("upload.expire は正の期間を指定してください"))
	}
	if c.Upload.SweepInterval <= 0 {
		errs = append(errs, errors.New("upload.sweep_interval は正の期間を指定してください"))
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, errors.New("upload.max_size_mb は正の値を指定してください"))
	}
	if c.Log.Format != logger.FormatConsole && c.Log.Format != logger.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format %q は console または json を指定してください", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParseDuration は期間を解析する。time.ParseDurationの形式に加え、
// 日数を表す "14d" の形式を受け付ける。
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("期間 %q が不正です", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("期間 %q が不正です: %w", s, err)
	}
	return d, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// resolvePath は相対パスをbaseDirを基準に解決する。
func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
