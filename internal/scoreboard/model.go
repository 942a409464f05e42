package scoreboard

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// maxParticipantLength は参加者名の最大文字数。
const maxParticipantLength = 255

// ScoreRecord は登録された1件のスコア。
// 登録後に更新・削除されることはない。
type ScoreRecord struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	// ID はストアが採番する一意なID。再利用されない。
	ID int64 `bun:"id,pk,autoincrement"`
	// Participant は参加者名。
	Participant string `bun:"pseudo,type:varchar(255),notnull"`
	// Value はスコア。
	Value int64 `bun:"score,notnull"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	// UpdatedAt は更新日時。更新は行わないため登録日時と同じ。
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeAppendModelHook = (*ScoreRecord)(nil)

// BeforeAppendModel は挿入時にタイムスタンプを設定する。
func (r *ScoreRecord) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now().UTC()
		r.CreatedAt = now
		r.UpdatedAt = now
	}
	return nil
}
