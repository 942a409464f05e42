package migrations

import (
	"context"

	"github.com/nao1215/scoreboard/internal/scoreboard"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return scoreboard.CreateSchema(ctx, tx)
		})
	}, func(ctx context.Context, db *bun.DB) error {
		return scoreboard.DropSchema(ctx, db)
	})
}
