// Package httpclient はスコアボードAPIを呼び出すためのHTTPクライアントを提供する。
//
// JSONのシリアライズ・デシリアライズ、タイムアウト設定、
// Bearerトークンの付与、エラーレスポンスの解釈を共通化する。
package httpclient
