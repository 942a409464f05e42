package main

import (
	"fmt"

	"github.com/nao1215/scoreboard/internal/config"
	"github.com/nao1215/scoreboard/internal/scoreboard/migrations"
	"github.com/nao1215/scoreboard/pkg/database"
	"github.com/nao1215/scoreboard/pkg/logging"
	"github.com/nao1215/scoreboard/pkg/migration"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// withDB は設定に従ってデータベースに接続し、fnを実行する。
func withDB(c *cli.Context, fn func(db *bun.DB, logger *zap.Logger) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, logging.FormatConsole)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(c.Context, database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DataSource(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, logger)
}

// newMigrateCommand はマイグレーション管理のサブコマンドを生成する。
func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *bun.DB, _ *zap.Logger) error {
						return migration.Init(c.Context, db, migrations.Migrations)
					})
				},
			},
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *bun.DB, logger *zap.Logger) error {
						return migration.Run(c.Context, db, migrations.Migrations, logger)
					})
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *bun.DB, logger *zap.Logger) error {
						return migration.Rollback(c.Context, db, migrations.Migrations, logger)
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *bun.DB, _ *zap.Logger) error {
						st, err := migration.CurrentStatus(c.Context, db, migrations.Migrations)
						if err != nil {
							return err
						}
						w := c.App.Writer
						fmt.Fprintf(w, "applied: %v\n", st.Applied)
						fmt.Fprintf(w, "pending: %v\n", st.Pending)
						fmt.Fprintf(w, "last group: #%d\n", st.LastGroupID)
						return nil
					})
				},
			},
		},
	}
}
