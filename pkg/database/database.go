// Package database はbun.DBの生成を提供する。
// PostgreSQL（pgdriver）とSQLite（modernc.org/sqlite）の両方に対応する。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	// DriverPostgres はPostgreSQLを表すドライバ名。
	DriverPostgres = "postgres"
	// DriverSQLite はSQLiteを表すドライバ名。
	DriverSQLite = "sqlite"
)

// Options はデータベース接続の設定。
type Options struct {
	// Driver は "postgres" または "sqlite"。
	Driver string
	// DSN は接続文字列。
	DSN string
	// MaxOpenConns は最大接続数。0以下の場合はドライバのデフォルト。
	MaxOpenConns int
}

// Open は設定に従ってbun.DBを生成し、疎通確認を行う。
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	var db *bun.DB
	switch opts.Driver {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
		if opts.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("SQLiteのオープンに失敗: %w", err)
		}
		switch {
		case IsMemoryDSN(opts.DSN):
			// インメモリDBは接続ごとに別のDBになるため1接続に固定する
			sqldb.SetMaxOpenConns(1)
		case opts.MaxOpenConns > 0:
			sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("未対応のデータベースドライバです: %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの接続に失敗: %w", err)
	}
	return db, nil
}

// IsMemoryDSN はSQLiteのDSNがインメモリDBを指しているかを返す。
func IsMemoryDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}
