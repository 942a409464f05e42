package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// signClaims は任意のクレームと署名方式でトークンを生成するヘルパー関数。
func signClaims(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, secret string) string {
	t.Helper()

	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return tokenStr
}

// newGatedRouter はJWTAuthで保護されたテスト用ルーターを生成する。
// ハンドラーが呼ばれた回数とサブジェクトを記録する。
func newGatedRouter(calls *int, subject *string) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/scores", func(c *gin.Context) {
		*calls++
		*subject = GetSubject(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// assertUnauthorized は401と固定メッセージが返ったことを検証する。
func assertUnauthorized(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if body["message"] != "Unauthorized" {
		t.Errorf("message = %q, want %q", body["message"], "Unauthorized")
	}
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("正常にJWTトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-123", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if !token.Valid {
			t.Fatal("トークンが無効")
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
		}
		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.Issuer != "scoreboard" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "scoreboard")
		}
	})

	t.Run("有効期限がttl後に設定されること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "user-exp", 2*time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := &JWTClaims{}
		if _, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		}); err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		expected := before.Add(2 * time.Hour)
		if claims.ExpiresAt.Time.Before(expected.Add(-time.Minute)) || claims.ExpiresAt.Time.After(expected.Add(time.Minute)) {
			t.Errorf("ExpiresAt = %v, want about %v", claims.ExpiresAt.Time, expected)
		}
	})

	t.Run("署名アルゴリズムがHS256であること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-alg", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		token, _, err := new(jwt.Parser).ParseUnverified(tokenStr, &JWTClaims{})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})
}

// TestSubjectIDUnmarshalJSON は文字列と数値のuserIdクレームの読み込みを検証する。
func TestSubjectIDUnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    SubjectID
		wantErr bool
	}{
		{name: "文字列", input: `"abc"`, want: "abc"},
		{name: "整数", input: `42`, want: "42"},
		{name: "null", input: `null`, want: ""},
		{name: "オブジェクトはエラー", input: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got SubjectID
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SubjectID = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでリクエストが成功しサブジェクトが設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ok", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var calls int
		var subject string
		router := newGatedRouter(&calls, &subject)

		req := httptest.NewRequest(http.MethodGet, "/scores", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if calls != 1 {
			t.Errorf("ハンドラー呼び出し回数 = %d, want 1", calls)
		}
		if subject != "user-ok" {
			t.Errorf("subject = %q, want %q", subject, "user-ok")
		}
	})

	t.Run("数値のuserIdクレームを持つトークンを受け付けること", func(t *testing.T) {
		t.Parallel()

		tokenStr := signClaims(t, jwt.SigningMethodHS256, jwt.MapClaims{
			"userId": 7,
			"exp":    time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		var calls int
		var subject string
		router := newGatedRouter(&calls, &subject)

		req := httptest.NewRequest(http.MethodGet, "/scores", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if subject != "7" {
			t.Errorf("subject = %q, want %q", subject, "7")
		}
	})

	t.Run("userIdが無い場合はsubクレームが使われること", func(t *testing.T) {
		t.Parallel()

		tokenStr := signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "sub-only",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}, testSecret)

		var calls int
		var subject string
		router := newGatedRouter(&calls, &subject)

		req := httptest.NewRequest(http.MethodGet, "/scores", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if subject != "sub-only" {
			t.Errorf("subject = %q, want %q", subject, "sub-only")
		}
	})

	t.Run("リクエストのcontextからもサブジェクトを取得できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ctx", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		var got string
		var ok bool
		router := gin.New()
		router.Use(JWTAuth(testSecret))
		router.GET("/scores", func(c *gin.Context) {
			got, ok = SubjectFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/scores", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		router.ServeHTTP(httptest.NewRecorder(), req)

		if !ok || got != "user-ctx" {
			t.Errorf("SubjectFromContext() = (%q, %v), want (%q, true)", got, ok, "user-ctx")
		}
	})

	unauthorized := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{
			name:   "Authorizationヘッダーが無い場合401が返ること",
			header: func(_ *testing.T) string { return "" },
		},
		{
			name: "Bearer接頭辞が無い場合401が返ること",
			header: func(t *testing.T) string {
				tokenStr, err := GenerateJWT(testSecret, "user-nobearer", time.Hour)
				if err != nil {
					t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
				}
				return tokenStr
			},
		},
		{
			name:   "トークンが空の場合401が返ること",
			header: func(_ *testing.T) string { return "Bearer " },
		},
		{
			name:   "不正な形式のトークンで401が返ること",
			header: func(_ *testing.T) string { return "Bearer invalid-token-string" },
		},
		{
			name: "異なるシークレットで署名されたトークンで401が返ること",
			header: func(t *testing.T) string {
				tokenStr, err := GenerateJWT("different-secret", "user-diff", time.Hour)
				if err != nil {
					t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
				}
				return "Bearer " + tokenStr
			},
		},
		{
			name: "期限切れトークンで401が返ること",
			header: func(t *testing.T) string {
				return "Bearer " + signClaims(t, jwt.SigningMethodHS256, JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   "user-expired",
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
						IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
					},
				}, testSecret)
			},
		},
		{
			name: "HMAC以外のアルゴリズムを指定したトークンで401が返ること",
			header: func(t *testing.T) string {
				tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
					Subject: "user-none",
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("トークンの生成に失敗: %v", err)
				}
				return "Bearer " + tokenStr
			},
		},
	}

	for _, tt := range unauthorized {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int
			var subject string
			router := newGatedRouter(&calls, &subject)

			req := httptest.NewRequest(http.MethodGet, "/scores", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assertUnauthorized(t, w)
			if calls != 0 {
				t.Errorf("ハンドラー呼び出し回数 = %d, want 0", calls)
			}
		})
	}
}

// TestGetSubject はGetSubject関数を検証する。
func TestGetSubject(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストにsubjectが設定されている場合に取得できること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(contextKeySubject, "user-get")

		if got := GetSubject(c); got != "user-get" {
			t.Errorf("GetSubject() = %q, want %q", got, "user-get")
		}
	})

	t.Run("subjectが文字列以外の型の場合に空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(contextKeySubject, 12345)

		if got := GetSubject(c); got != "" {
			t.Errorf("GetSubject() = %q, want empty string", got)
		}
	})
}
