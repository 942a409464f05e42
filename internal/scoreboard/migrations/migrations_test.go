package migrations_test

import (
	"testing"

	"github.com/nao1215/scoreboard/internal/scoreboard"
	"github.com/nao1215/scoreboard/internal/scoreboard/migrations"
	"github.com/nao1215/scoreboard/pkg/database"
	"github.com/nao1215/scoreboard/pkg/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestMigrations はscoresテーブルのマイグレーションの適用と取り消しを検証する。
func TestMigrations(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db, err := database.Open(ctx, database.Options{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := zaptest.NewLogger(t)

	t.Run("適用前はすべて未適用であること", func(t *testing.T) {
		require.NoError(t, migration.Init(ctx, db, migrations.Migrations))

		status, err := migration.CurrentStatus(ctx, db, migrations.Migrations)
		require.NoError(t, err)
		assert.Empty(t, status.Applied)
		assert.Equal(t, []string{"20261015120000"}, status.Pending)
		assert.Zero(t, status.LastGroupID)
	})

	t.Run("適用後にscoresテーブルが使えること", func(t *testing.T) {
		require.NoError(t, migration.Run(ctx, db, migrations.Migrations, logger))

		status, err := migration.CurrentStatus(ctx, db, migrations.Migrations)
		require.NoError(t, err)
		assert.Equal(t, []string{"20261015120000"}, status.Applied)
		assert.Empty(t, status.Pending)
		assert.Equal(t, int64(1), status.LastGroupID)

		store := scoreboard.NewBunStore(db, scoreboard.Limits{})
		_, err = store.Create(ctx, scoreboard.Submission{Participant: "alice", Value: 50})
		require.NoError(t, err)
	})

	t.Run("再実行しても何も起きないこと", func(t *testing.T) {
		require.NoError(t, migration.Run(ctx, db, migrations.Migrations, logger))

		status, err := migration.CurrentStatus(ctx, db, migrations.Migrations)
		require.NoError(t, err)
		assert.Equal(t, int64(1), status.LastGroupID)
	})

	t.Run("ロールバックでscoresテーブルが削除されること", func(t *testing.T) {
		require.NoError(t, migration.Rollback(ctx, db, migrations.Migrations, logger))

		status, err := migration.CurrentStatus(ctx, db, migrations.Migrations)
		require.NoError(t, err)
		assert.Empty(t, status.Applied)

		store := scoreboard.NewBunStore(db, scoreboard.Limits{})
		_, err = store.Count(ctx)
		require.Error(t, err)
	})
}
