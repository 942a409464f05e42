package scoreboard

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/uptrace/bun"
)

// Submission はスコア登録の入力値。
type Submission struct {
	// Participant は参加者名。
	Participant string
	// Value はスコア。
	Value int64
}

// ValidateSubmission は永続化の前に入力値を検証する。
// 参加者名が空白のみ、最大文字数を超える、またはどちらのバックエンドでも
// 保存できる文字列でない場合はErrValidationを返す。
func ValidateSubmission(sub Submission) error {
	if strings.TrimSpace(sub.Participant) == "" {
		return validationError("pseudo is required")
	}
	// PostgreSQLのtext型はNULと不正なUTF-8を受け付けない
	if !utf8.ValidString(sub.Participant) {
		return validationError("pseudo must be valid UTF-8")
	}
	if strings.ContainsRune(sub.Participant, 0) {
		return validationError("pseudo must not contain NUL characters")
	}
	if utf8.RuneCountInString(sub.Participant) > maxParticipantLength {
		return validationError("pseudo must be at most %d characters", maxParticipantLength)
	}
	return nil
}

// Limits は一覧取得の件数設定。
type Limits struct {
	// Default はlimit未指定時の件数。
	Default int
	// Max はlimitの上限。これを超える値は切り詰める。
	Max int
}

// Store はスコアの永続化を抽象化する。
type Store interface {
	// Create は入力値を検証して1件登録し、採番済みのレコードを返す。
	Create(ctx context.Context, sub Submission) (*ScoreRecord, error)
	// ListTop はスコア降順の上位limit件を返す。
	ListTop(ctx context.Context, limit int) ([]ScoreRecord, error)
	// GetByRank は1始まりの順位にあるレコードを返す。
	GetByRank(ctx context.Context, rank int) (*ScoreRecord, error)
	// Count は登録済みのレコード数を返す。
	Count(ctx context.Context) (int, error)
	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error
}

// BunStore はbunを使ったStoreの実装。
type BunStore struct {
	// db はPostgreSQLまたはSQLiteへの接続。
	db *bun.DB
	// limits は一覧取得の件数設定。
	limits Limits
}

var _ Store = (*BunStore)(nil)

// NewBunStore は新しいBunStoreを生成する。
// limitsの各値が0以下の場合は10件、上限1000件を使用する。
func NewBunStore(db *bun.DB, limits Limits) *BunStore {
	if limits.Default <= 0 {
		limits.Default = 10
	}
	if limits.Max < limits.Default {
		limits.Max = max(limits.Default, 1000)
	}
	return &BunStore{db: db, limits: limits}
}

// rankingOrder はランキングの並び順。同点の場合は登録順とする。
const rankingOrder = "s.score DESC, s.id ASC"

// Create はスコアを1件登録する。
func (s *BunStore) Create(ctx context.Context, sub Submission) (*ScoreRecord, error) {
	if err := ValidateSubmission(sub); err != nil {
		return nil, err
	}

	rec := &ScoreRecord{
		Participant: sub.Participant,
		Value:       sub.Value,
	}
	if _, err := s.db.NewInsert().Model(rec).Returning("id").Exec(ctx); err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}
	return rec, nil
}

// ListTop はスコア降順の上位limit件を返す。
// limitが0以下の場合はデフォルト件数、上限を超える場合は上限件数とする。
func (s *BunStore) ListTop(ctx context.Context, limit int) ([]ScoreRecord, error) {
	limit = s.normalizeLimit(limit)

	records := make([]ScoreRecord, 0, min(limit, 64))
	if err := s.db.NewSelect().
		Model(&records).
		OrderExpr(rankingOrder).
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return records, nil
}

// GetByRank は1始まりの順位にあるレコードを返す。
// rankが0以下の場合はストアに問い合わせずErrValidationを返す。
// 該当するレコードが無い場合はErrNotFoundを返す。
func (s *BunStore) GetByRank(ctx context.Context, rank int) (*ScoreRecord, error) {
	if rank <= 0 {
		return nil, validationError("rank must be a positive integer")
	}

	rec := new(ScoreRecord)
	err := s.db.NewSelect().
		Model(rec).
		OrderExpr(rankingOrder).
		Offset(rank - 1).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get by rank", Err: err}
	}
	return rec, nil
}

// Count は登録済みのレコード数を返す。
func (s *BunStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*ScoreRecord)(nil)).Count(ctx)
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Ping はデータベースへの疎通を確認する。
func (s *BunStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// normalizeLimit は一覧取得の件数をデフォルト値と上限で補正する。
func (s *BunStore) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.limits.Default
	}
	return min(limit, s.limits.Max)
}
