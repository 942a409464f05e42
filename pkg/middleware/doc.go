// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの検証、リクエストID、アクセスログ、Prometheusメトリクス、
// パニックリカバリ、CORS設定、レート制限を含む。
package middleware
