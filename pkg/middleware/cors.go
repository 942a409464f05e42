package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// corsAllowMethods はプリフライトで許可するメソッド。/scoresの公開メソッドに一致させる。
	corsAllowMethods = "GET, POST, OPTIONS"
	// corsAllowHeaders はプリフライトで許可するリクエストヘッダー。
	corsAllowHeaders = "Authorization, Content-Type, " + HeaderRequestID
	// corsMaxAge はプリフライト結果のキャッシュ秒数。
	corsMaxAge = 24 * 60 * 60
)

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
//
// 許可されたオリジンのプリフライト（Access-Control-Request-Methodを伴うOPTIONS）には
// 204を返して後続を実行しない。許可されていないオリジンのリクエストにはCORSヘッダーを
// 付与せずに後続へ渡す。allowedOriginsが空の場合はすべてのオリジンを許可しない。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[strings.TrimRight(o, "/")] = struct{}{}
	}
	maxAge := strconv.Itoa(corsMaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		// オリジンによってレスポンスが変わるためキャッシュを分ける
		c.Writer.Header().Add("Vary", "Origin")
		if _, ok := originsSet[origin]; !ok {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Expose-Headers", HeaderRequestID)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
