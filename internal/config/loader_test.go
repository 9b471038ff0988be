package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/qualtrack/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		clearConfigEnvVars()
		// keep a stray ./.env out of the picture
		t.Setenv("QUALTRACK_ENV_FILE", writeFile(dir, "empty.env", ""))

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.PredictionK, convey.ShouldEqual, 3.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("QUALTRACK_ADDR", ":8080")
			t.Setenv("QUALTRACK_QUEUE_SIZE", "64")
			t.Setenv("QUALTRACK_CACHE_BACKEND", "none")
			t.Setenv("QUALTRACK_PREDICTION_K", "4.5")
			t.Setenv("QUALTRACK_REFRESH_SCHEDULE", "@every 6h")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.CacheBackend, convey.ShouldEqual, "none")
				convey.So(cfg.PredictionK, convey.ShouldEqual, 4.5)
				convey.So(cfg.RefreshSchedule, convey.ShouldEqual, "@every 6h")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeFile(dir, "config.yaml", `
addr: ":9090"
worker_count: 4
db_path: "/tmp/qualtrack.db"
ranking_date: "31/12/2024"
metrics_enabled: false
metrics_namespace: swim
`)
			t.Setenv("QUALTRACK_CONFIG", path)
			t.Setenv("QUALTRACK_WORKER_COUNT", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/qualtrack.db")
				convey.So(cfg.RankingDate, convey.ShouldEqual, "31/12/2024")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 1024)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "swim")
			})
		})

		convey.Convey("When a dotenv file sets variables", func() {
			t.Setenv("QUALTRACK_ENV_FILE", writeFile(dir, "app.env", "QUALTRACK_MAX_COHORT=25\n"))
			// registers the cleanup for the value godotenv sets
			t.Setenv("QUALTRACK_MAX_COHORT", "")
			_ = os.Unsetenv("QUALTRACK_MAX_COHORT")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they are applied like environment variables", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxCohort, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When the dotenv file is missing", func() {
			t.Setenv("QUALTRACK_ENV_FILE", filepath.Join(dir, "missing.env"))

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			t.Setenv("QUALTRACK_CONFIG", writeFile(dir, "bad.yaml", `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			t.Setenv("QUALTRACK_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			t.Setenv("QUALTRACK_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "QUALTRACK_") {
			_ = os.Unsetenv(name)
		}
	}
}

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		panic(err)
	}
	return path
}
