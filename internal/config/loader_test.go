package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/pedalrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"PEDALRANK_CONFIG",
	"PEDALRANK_ADDR",
	"PEDALRANK_LOG_LEVEL",
	"PEDALRANK_BACKEND",
	"PEDALRANK_POSTGRES_DSN",
	"PEDALRANK_UPSTASH_URL",
	"PEDALRANK_UPSTASH_TOKEN",
	"PEDALRANK_FLUSH_DELAY_MS",
	"PEDALRANK_FLUSH_WORKERS",
	"PEDALRANK_RECENT_SIZE",
	"PEDALRANK_PROXY_ENABLED",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pedalrank-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return f.Name()
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Backend, convey.ShouldEqual, "memory")
			convey.So(cfg.FlushDelay(), convey.ShouldEqual, 700*time.Millisecond)
			convey.So(cfg.FlushWorkers, convey.ShouldEqual, 4)
			convey.So(cfg.RecentSize, convey.ShouldEqual, 14)
			convey.So(cfg.CatalogueTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.UpstashTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should equal New()", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PEDALRANK_ADDR", ":8080")
			_ = os.Setenv("PEDALRANK_FLUSH_DELAY_MS", "250")
			_ = os.Setenv("PEDALRANK_FLUSH_WORKERS", "8")
			_ = os.Setenv("PEDALRANK_PROXY_ENABLED", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FlushDelayMS, convey.ShouldEqual, 250)
				convey.So(cfg.FlushWorkers, convey.ShouldEqual, 8)
				convey.So(cfg.ProxyEnabled, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file and env vars", func() {
			path := createTempConfigFile(t, `
addr: ":9090"
backend: postgres
postgres_dsn: "postgres://localhost/pedalrank"
recent_size: 10
flush_workers: 2
`)
			_ = os.Setenv("PEDALRANK_CONFIG", path)
			_ = os.Setenv("PEDALRANK_FLUSH_WORKERS", "6")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Backend, convey.ShouldEqual, "postgres")
				convey.So(cfg.PostgresDSN, convey.ShouldEqual, "postgres://localhost/pedalrank")
				convey.So(cfg.RecentSize, convey.ShouldEqual, 10)
				convey.So(cfg.FlushWorkers, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("PEDALRANK_CONFIG", "/nonexistent/pedalrank.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the backend is unknown", func() {
			_ = os.Setenv("PEDALRANK_BACKEND", "mongo")

			_, err := config.Load(ctx)

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When upstash is selected without credentials", func() {
			_ = os.Setenv("PEDALRANK_BACKEND", "upstash")

			_, err := config.Load(ctx)

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When upstash is fully configured", func() {
			_ = os.Setenv("PEDALRANK_BACKEND", "upstash")
			_ = os.Setenv("PEDALRANK_UPSTASH_URL", "https://example.upstash.io")
			_ = os.Setenv("PEDALRANK_UPSTASH_TOKEN", "secret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.UpstashToken, convey.ShouldEqual, "secret")
			})
		})

		convey.Convey("When the log level is invalid", func() {
			_ = os.Setenv("PEDALRANK_LOG_LEVEL", "loud")

			_, err := config.Load(ctx)

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the recent window size is zero", func() {
			_ = os.Setenv("PEDALRANK_RECENT_SIZE", "0")

			_, err := config.Load(ctx)

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
