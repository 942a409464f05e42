// Package migration はbun/migrateによるスキーママイグレーションの実行を管理する。
// 管理テーブルで適用状態を追跡し、未適用のマイグレーションのみ実行する。
package migration

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// Status はマイグレーションの適用状況。
type Status struct {
	// Applied は適用済みのマイグレーション名。
	Applied []string
	// Pending は未適用のマイグレーション名。
	Pending []string
	// LastGroupID は最後に適用したグループのID。未適用の場合は0。
	LastGroupID int64
}

// Init はマイグレーション管理テーブルを作成する。作成済みの場合は何もしない。
func Init(ctx context.Context, db *bun.DB, migrations *migrate.Migrations) error {
	if err := migrate.NewMigrator(db, migrations).Init(ctx); err != nil {
		return fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}
	return nil
}

// Run は未適用のマイグレーションを1つのグループとして適用する。
// 管理テーブルが無い場合は先に作成する。
func Run(ctx context.Context, db *bun.DB, migrations *migrate.Migrations, logger *zap.Logger) error {
	if err := Init(ctx, db, migrations); err != nil {
		return err
	}

	group, err := migrate.NewMigrator(db, migrations).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}
	if group.IsZero() {
		logger.Info("適用するマイグレーションはありません")
		return nil
	}
	logger.Info("マイグレーションを適用しました", zap.String("group", group.String()))
	return nil
}

// Rollback は最後に適用したグループを取り消す。
func Rollback(ctx context.Context, db *bun.DB, migrations *migrate.Migrations, logger *zap.Logger) error {
	group, err := migrate.NewMigrator(db, migrations).Rollback(ctx)
	if err != nil {
		return fmt.Errorf("マイグレーションのロールバックに失敗: %w", err)
	}
	if group.IsZero() {
		logger.Info("ロールバックするグループはありません")
		return nil
	}
	logger.Info("マイグレーションをロールバックしました", zap.String("group", group.String()))
	return nil
}

// CurrentStatus はマイグレーションの適用状況を返す。
func CurrentStatus(ctx context.Context, db *bun.DB, migrations *migrate.Migrations) (Status, error) {
	ms, err := migrate.NewMigrator(db, migrations).MigrationsWithStatus(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("マイグレーション状況の取得に失敗: %w", err)
	}

	st := Status{LastGroupID: ms.LastGroupID()}
	for _, m := range ms.Applied() {
		st.Applied = append(st.Applied, m.Name)
	}
	for _, m := range ms.Unapplied() {
		st.Pending = append(st.Pending, m.Name)
	}
	return st, nil
}
