package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer はGenerateJWTが発行するトークンのissuer。
const tokenIssuer = "scoreboard"

// contextKeySubject はGinコンテキストに認証済みサブジェクトを格納するキー。
const contextKeySubject = "subject"

// messageUnauthorized は認証失敗時のレスポンスメッセージ。
const messageUnauthorized = "Unauthorized"

// subjectContextKey はcontext.Contextに認証済みサブジェクトを格納するキーの型。
type subjectContextKey struct{}

// SubjectID はトークンに埋め込まれたユーザー識別子。
// 発行元によって文字列または数値で表現されるため、どちらも受け付ける。
type SubjectID string

// UnmarshalJSON は文字列と数値の両方をSubjectIDとして読み込む。
func (s *SubjectID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SubjectID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("userIdの形式が不正です: %w", err)
	}
	*s = SubjectID(num.String())
	return nil
}

// JWTClaims は認証トークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は発行元が埋め込むユーザー識別子。空の場合はsubクレームを使用する。
	UserID SubjectID `json:"userId,omitempty"`
}

// subject はクレームからサブジェクトを決定する。
func (c *JWTClaims) subject() string {
	if c.UserID != "" {
		return string(c.UserID)
	}
	return c.Subject
}

// GenerateJWT はサブジェクトからHS256署名のトークンを生成する。
// 開発用CLIとテストから使用する。HTTPエンドポイントとしては公開しない。
func GenerateJWT(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: SubjectID(subject),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// ヘッダーが無い、形式が不正、署名や有効期限の検証に失敗した場合は
// 401を返して後続のハンドラを実行しない。
// 検証に成功した場合、サブジェクトをGinコンテキストとリクエストのcontextに設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))

	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			abortUnauthorized(c)
			return
		}

		claims := &JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c)
			return
		}

		subject := claims.subject()
		c.Set(contextKeySubject, subject)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), subjectContextKey{}, subject))
		c.Next()
	}
}

// abortUnauthorized は401レスポンスを返してチェーンを中断する。
func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": messageUnauthorized})
}

// GetSubject はGinコンテキストから認証済みサブジェクトを取得する。
// JWTAuthが適用されていないルートでは空文字列を返す。
func GetSubject(c *gin.Context) string {
	v, _ := c.Get(contextKeySubject)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// SubjectFromContext はcontext.Contextから認証済みサブジェクトを取得する。
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectContextKey{}).(string)
	return s, ok
}
