package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/mockhub/pkg/logger"
)

// envMap はテスト用の環境変数。
func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("既定値が補われること", func(t *testing.T) {
		t.Parallel()

		src := []byte(`
jwt {
  secret = "s3cret"
}
`)
		cfg, err := Parse("/etc/mockhub/mockhub.hcl", src, envMap(nil))
		require.NoError(t, err)

		assert.Equal(t, 7300, cfg.Port)
		assert.Equal(t, ":7300", cfg.Addr())
		assert.Equal(t, EnvDevelopment, cfg.Env)
		assert.False(t, cfg.IsProduction())
		assert.Equal(t, "^/api", cfg.RouterPrefix)
		assert.Equal(t, []string{"/api/u/login", "/api/u/register"}, cfg.PublicAPIs)
		assert.Equal(t, int64(1<<20), cfg.BodyLimit)
		assert.Equal(t, "user", cfg.JWT.Key)
		assert.Equal(t, "tokens", cfg.JWT.Collection)
		assert.Equal(t, 14*24*time.Hour, cfg.JWT.Expire)
		assert.Equal(t, "/etc/mockhub/upload", cfg.Upload.Dir)
		assert.Equal(t, 24*time.Hour, cfg.Upload.Expire)
		assert.Equal(t, time.Hour, cfg.Upload.SweepInterval)
		assert.Equal(t, int64(2<<20), cfg.Upload.MaxSize)
		assert.Equal(t, "/etc/mockhub/dist", cfg.Static.DistDir)
		assert.True(t, cfg.CORS.Credentials)
		assert.Equal(t, 30*24*time.Hour, cfg.CORS.MaxAge)
		assert.Equal(t, logger.FormatConsole, cfg.Log.Format)
		assert.Equal(t, "debug", cfg.Log.Level)
		require.NotNil(t, cfg.Gate)
		assert.True(t, cfg.Gate.Bypass("/api/u/login"))
		assert.False(t, cfg.Gate.Bypass("/api/mock"))
	})

	t.Run("設定ファイルの値が反映されること", func(t *testing.T) {
		t.Parallel()

		src := []byte(`
port            = 8080
proxy           = true
trusted_proxies = ["10.0.0.0/8"]
db              = "file::memory:"
env             = "production"
public_apis     = ["/api/open/:id"]

router_prefix {
  api = "^/(api|admin)"
}

jwt {
  secret     = "s3cret"
  key        = "principal"
  collection = "sessions"
  expire     = "2h"
}

upload {
  dir            = "/var/lib/mockhub/upload"
  expire         = "3d"
  sweep_interval = "10m"
  max_size_mb    = 5
}

cors {
  allowed_origins = ["https://example.com"]
  credentials     = false
  max_age         = "1h"
}

log {
  level = "warn"
  file  = "logs/mockhub.log"
}
`)
		cfg, err := Parse("conf/mockhub.hcl", src, envMap(nil))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.True(t, cfg.Proxy)
		assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
		assert.Equal(t, "file::memory:", cfg.DB)
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "principal", cfg.JWT.Key)
		assert.Equal(t, "sessions", cfg.JWT.Collection)
		assert.Equal(t, 2*time.Hour, cfg.JWT.Expire)
		assert.Equal(t, "/var/lib/mockhub/upload", cfg.Upload.Dir)
		assert.Equal(t, 72*time.Hour, cfg.Upload.Expire)
		assert.Equal(t, 10*time.Minute, cfg.Upload.SweepInterval)
		assert.Equal(t, int64(5<<20), cfg.Upload.MaxSize)
		assert.Equal(t, []string{"https://example.com"}, cfg.CORS.AllowedOrigins)
		assert.False(t, cfg.CORS.Credentials)
		assert.Equal(t, time.Hour, cfg.CORS.MaxAge)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, logger.FormatJSON, cfg.Log.Format)
		assert.Equal(t, filepath.Join("conf", "logs", "mockhub.log"), cfg.Log.File)

		assert.False(t, cfg.Gate.Bypass("/admin/users"))
		assert.False(t, cfg.Gate.Bypass("/admin/open/1"))
		assert.True(t, cfg.Gate.Bypass("/api/open/1"))
		assert.False(t, cfg.Gate.Bypass("/api/u/login"))
	})

	t.Run("環境変数で上書きされること", func(t *testing.T) {
		t.Parallel()

		src := []byte(`
port = 8080
jwt {
  secret = "from-file"
}
`)
		cfg, err := Parse("mockhub.hcl", src, envMap(map[string]string{
			EnvPort:      "9000",
			EnvJWTSecret: "from-env",
			EnvMode:      "production",
		}))
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, "from-env", cfg.JWT.Secret)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("不正な設定はエラーになること", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			src  string
			env  map[string]string
		}{
			{name: "秘密鍵なし", src: ``},
			{name: "不正なプレフィックス", src: `
router_prefix {
  api = "^/(api"
}
jwt {
  secret = "s"
}`},
			{name: "空のプレフィックス", src: `
router_prefix {
  api = ""
}
jwt {
  secret = "s"
}`},
			{name: "不正な公開エンドポイント", src: `
public_apis = ["api/login"]
jwt {
  secret = "s"
}`},
			{name: "不正な期間", src: `
jwt {
  secret = "s"
  expire = "soon"
}`},
			{name: "範囲外のポート", src: `
port = 70000
jwt {
  secret = "s"
}`},
			{name: "不正な環境", src: `
env = "staging"
jwt {
  secret = "s"
}`},
			{name: "不正なログ形式", src: `
jwt {
  secret = "s"
}
log {
  format = "xml"
}`},
			{name: "数値でないPORT", src: `
jwt {
  secret = "s"
}`, env: map[string]string{EnvPort: "http"}},
			{name: "HCLの構文エラー", src: `jwt {`},
		}
		for _, tt := range tests {
			_, err := Parse("mockhub.hcl", []byte(tt.src), envMap(tt.env))
			assert.Error(t, err, tt.name)
		}
	})

	t.Run("空のプレフィックスは既定値に置き換えられないこと", func(t *testing.T) {
		t.Parallel()

		src := `
router_prefix {
  api = ""
}
jwt {
  secret = "s"
}`
		cfg, err := Parse("mockhub.hcl", []byte(src), envMap(nil))
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "保護プレフィックスの正規表現が空です")
	})

	t.Run("router_prefixブロックのみの場合は既定値が使われること", func(t *testing.T) {
		t.Parallel()

		src := `
router_prefix {}
jwt {
  secret = "s"
}`
		cfg, err := Parse("mockhub.hcl", []byte(src), envMap(nil))
		require.NoError(t, err)
		assert.Equal(t, "^/api", cfg.RouterPrefix)
		assert.True(t, cfg.Gate.RequiresAuth("/api/mock"))
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("ファイルから読み込めること", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "mockhub.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`
jwt {
  secret = "s3cret"
}
upload {
  dir = "files"
}
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "files"), cfg.Upload.Dir)
	})

	t.Run("同梱の設定例が読み込めること", func(t *testing.T) {
		t.Parallel()

		src, err := os.ReadFile(filepath.Join("..", "..", "config", "mockhub.hcl"))
		require.NoError(t, err)

		cfg, err := Parse("config/mockhub.hcl", src, envMap(nil))
		require.NoError(t, err)
		assert.Equal(t, "^/api", cfg.RouterPrefix)
		// オリジン未指定のまま資格情報を許可しているため、設定例には警告を残している
		assert.Empty(t, cfg.CORS.AllowedOrigins)
		assert.True(t, cfg.CORS.Credentials)
		assert.Contains(t, string(src), "本番環境では必ずオリジンを列挙すること")
	})

	t.Run("ファイルが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
		assert.Error(t, err)
	})
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "14d", want: 14 * 24 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: " 2h30m ", want: 2*time.Hour + 30*time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"", "d", "xd", "soon"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}
