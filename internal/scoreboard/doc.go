// Package scoreboard はスコアボードサービスの内部実装を提供する。
//
// スコアの登録、スコア降順の上位一覧、順位指定での1件取得を扱う。
// 永続化はbunを介してPostgreSQLまたはSQLiteに行い、並び順は読み出し時に
// スコアの降順、同点の場合はIDの昇順（登録順）で決定する。
//
// 主な機能:
//   - スコアの登録（Create）
//   - 上位N件の取得（ListTop）
//   - 順位指定での取得（GetByRank）
package scoreboard
