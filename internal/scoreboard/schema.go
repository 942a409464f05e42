package scoreboard

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// CreateSchema はscoresテーブルと並び順用のインデックスを作成する。
// 既に存在する場合は何もしない。
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*ScoreRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("scoresテーブルの作成に失敗: %w", err)
	}

	// ListTopとGetByRankの並び順（score降順、id昇順）に対応するインデックス
	if _, err := db.NewCreateIndex().
		Model((*ScoreRecord)(nil)).
		Index("idx_scores_ranking").
		IfNotExists().
		ColumnExpr("score DESC, id ASC").
		Exec(ctx); err != nil {
		return fmt.Errorf("ランキング用インデックスの作成に失敗: %w", err)
	}
	return nil
}

// DropSchema はscoresテーブルを削除する。
func DropSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewDropTable().Model((*ScoreRecord)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("scoresテーブルの削除に失敗: %w", err)
	}
	return nil
}
