// スコアボードサービスのエントリポイント。
// 設定を読み込み、マイグレーションを適用してからHTTPサーバーを起動する。
// SIGINT/SIGTERMを受け取るとグレースフルシャットダウンする。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/scoreboard/internal/config"
	"github.com/nao1215/scoreboard/internal/scoreboard"
	"github.com/nao1215/scoreboard/internal/scoreboard/migrations"
	"github.com/nao1215/scoreboard/pkg/database"
	"github.com/nao1215/scoreboard/pkg/logging"
	"github.com/nao1215/scoreboard/pkg/migration"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "config.yaml", "設定ファイルのパス")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "スコアボードサービスの実行に失敗: %v\n", err)
		os.Exit(1)
	}
}

// run はサービスを構築して起動する。シグナルを受け取るまで戻らない。
func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DataSource(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.Run(ctx, db, migrations.Migrations, logger); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := scoreboard.NewBunStore(db, scoreboard.Limits{
		Default: cfg.Leaderboard.DefaultLimit,
		Max:     cfg.Leaderboard.MaxLimit,
	})
	server, err := scoreboard.NewServer(cfg, store, logger, registry)
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}

	logger.Info("設定を読み込みました",
		zap.String("driver", cfg.Database.Driver),
		zap.String("auth_policy", string(cfg.Auth.Policy)),
		zap.Int("default_limit", cfg.Leaderboard.DefaultLimit),
	)
	return server.Run(ctx)
}
