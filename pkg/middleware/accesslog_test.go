package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestAccessLog はAccessLogミドルウェアを検証する。
func TestAccessLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{name: "2xxはinfoで出力されること", status: http.StatusOK, level: zapcore.InfoLevel},
		{name: "4xxはwarnで出力されること", status: http.StatusNotFound, level: zapcore.WarnLevel},
		{name: "5xxはerrorで出力されること", status: http.StatusInternalServerError, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			router := gin.New()
			router.Use(RequestID(), AccessLog(zap.New(core)))
			router.GET("/scores", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scores", nil))

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("ログ件数 = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.level {
				t.Errorf("ログレベル = %v, want %v", entries[0].Level, tt.level)
			}
			fields := entries[0].ContextMap()
			if fields["status"] != int64(tt.status) {
				t.Errorf("status = %v, want %d", fields["status"], tt.status)
			}
			if fields["request_id"] != w.Header().Get(HeaderRequestID) {
				t.Errorf("request_id = %v, want %q", fields["request_id"], w.Header().Get(HeaderRequestID))
			}
		})
	}

	t.Run("認証済みの場合はsubjectが出力されること", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		router := gin.New()
		router.Use(AccessLog(zap.New(core)))
		router.GET("/scores", func(c *gin.Context) {
			c.Set(contextKeySubject, "user-42")
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scores", nil))

		if got := logs.All()[0].ContextMap()["subject"]; got != "user-42" {
			t.Errorf("subject = %v, want %q", got, "user-42")
		}
	})
}
