// Package migrations はscoresテーブルのbunマイグレーションを登録する。
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations はスコアボードサービスのマイグレーション一覧。
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
