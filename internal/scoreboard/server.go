package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/scoreboard/internal/config"
	"github.com/nao1215/scoreboard/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "scoreboard"

// Server はスコアボードサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサービス設定。
	cfg *config.Config
	// store はスコアの永続化層。
	store Store
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics はサービス固有のメトリクス。
	metrics *serviceMetrics
}

// NewServer は新しいスコアボードサーバーを生成する。
// registryにはHTTPメトリクスとサービス固有メトリクスが登録され、/metricsで公開される。
func NewServer(cfg *config.Config, store Store, logger *zap.Logger, registry *prometheus.Registry) (*Server, error) {
	if cfg == nil || store == nil || logger == nil || registry == nil {
		return nil, errors.New("サーバーの依存関係が不足しています")
	}

	router := gin.New()
	// 信頼するプロキシが未設定の場合、X-Forwarded-Forは無視され接続元アドレスがClientIPになる
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.NewHTTPMetrics(registry, metricsNamespace).Handler())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	s := &Server{
		router:  router,
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: newServiceMetrics(registry),
	}
	s.setupRoutes(registry)

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort("", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("スコアボードサービスを起動します", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("スコアボードサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	// ListenAndServeの終了を待つ
	for range errCh {
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(registry *prometheus.Registry) {
	scores := s.router.Group("/scores")
	if s.cfg.Auth.Policy == config.AuthPolicyRequired {
		scores.Use(middleware.JWTAuth(s.cfg.Auth.Secret))
	}
	{
		submit := []gin.HandlerFunc{}
		if rl := s.cfg.RateLimit; rl.SubmitPerSecond > 0 {
			limiter := middleware.NewClientRateLimiter(rate.Limit(rl.SubmitPerSecond), rl.Burst)
			submit = append(submit, middleware.RateLimit(limiter))
		}
		// スコア登録
		scores.POST("", append(submit, s.handleCreate())...)
		// 上位一覧取得
		scores.GET("", s.handleListTop())
		// 順位指定での取得
		scores.GET("/:rank", s.handleGetByRank())
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// createScoreRequest はスコア登録リクエストのJSON構造。
// 欠落と型違いを区別するため、scoreは生のJSONとして受け取る。
type createScoreRequest struct {
	// Pseudo は参加者名。
	Pseudo *string `json:"pseudo"`
	// Score はスコア。整数のみ受け付ける。
	Score json.RawMessage `json:"score"`
}

// scoreResponse はスコアのJSONレスポンス構造。
type scoreResponse struct {
	// ID はスコアの一意識別子。
	ID int64 `json:"id"`
	// Pseudo は参加者名。
	Pseudo string `json:"pseudo"`
	// Score はスコア。
	Score int64 `json:"score"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updatedAt"`
}

// toScoreResponse はレコードをJSONレスポンスに変換する。
func toScoreResponse(r ScoreRecord) scoreResponse {
	return scoreResponse{
		ID:        r.ID,
		Pseudo:    r.Participant,
		Score:     r.Value,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// toSubmission はリクエストを検証済みの登録入力値に変換する。
func (req createScoreRequest) toSubmission() (Submission, error) {
	if req.Pseudo == nil {
		return Submission{}, validationError("pseudo is required")
	}
	if len(req.Score) == 0 || string(req.Score) == "null" {
		return Submission{}, validationError("score is required")
	}
	value, err := strconv.ParseInt(string(req.Score), 10, 64)
	if err != nil {
		return Submission{}, validationError("score must be an integer")
	}

	sub := Submission{Participant: *req.Pseudo, Value: value}
	if err := ValidateSubmission(sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// handleCreate はスコア登録を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createScoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, validationError("invalid request body"))
			return
		}

		sub, err := req.toSubmission()
		if err != nil {
			s.writeError(c, err)
			return
		}

		rec, err := s.store.Create(c.Request.Context(), sub)
		if err != nil {
			s.writeError(c, err)
			return
		}
		s.metrics.scoresCreated.Inc()

		s.logger.Debug("スコアを登録しました",
			zap.Int64("id", rec.ID),
			zap.String("subject", middleware.GetSubject(c)),
		)
		c.JSON(http.StatusCreated, gin.H{"message": "Score created", "score": toScoreResponse(*rec)})
	}
}

// handleListTop は上位一覧取得を処理するハンドラを返す。
// limitが数値でない場合はデフォルト件数として扱う。
func (s *Server) handleListTop() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.Query("limit"))
		if err != nil {
			limit = 0
		}

		records, err := s.store.ListTop(c.Request.Context(), limit)
		if err != nil {
			s.writeError(c, err)
			return
		}

		responses := make([]scoreResponse, 0, len(records))
		for _, r := range records {
			responses = append(responses, toScoreResponse(r))
		}
		c.JSON(http.StatusOK, gin.H{"scores": responses})
	}
}

// handleGetByRank は順位指定での取得を処理するハンドラを返す。
func (s *Server) handleGetByRank() gin.HandlerFunc {
	return func(c *gin.Context) {
		rank, err := strconv.Atoi(c.Param("rank"))
		if err != nil {
			s.writeError(c, validationError("rank must be a positive integer"))
			return
		}

		rec, err := s.store.GetByRank(c.Request.Context(), rank)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scores": []scoreResponse{toScoreResponse(*rec)}})
	}
}

// handleHealth はヘルスチェックを処理するハンドラを返す。
// ストアに到達できない場合は503を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("ヘルスチェックに失敗", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
			return
		}

		body := gin.H{"status": "ok", "service": serviceName}
		if n, err := s.store.Count(ctx); err == nil {
			body["scores"] = n
		}
		c.JSON(http.StatusOK, body)
	}
}

// writeError はエラーの種別に応じたステータスコードでレスポンスを返す。
func (s *Server) writeError(c *gin.Context, err error) {
	var storeErr *StoreError
	switch {
	case errors.Is(err, ErrValidation):
		s.metrics.requestFailures.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, ErrNotFound):
		s.metrics.requestFailures.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"message": "Score not found"})
	case errors.As(err, &storeErr):
		s.metrics.requestFailures.WithLabelValues("store").Inc()
		s.logger.Error("ストア操作に失敗",
			zap.String("op", storeErr.Op),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(storeErr.Err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": storeErr.Err.Error()})
	default:
		s.metrics.requestFailures.WithLabelValues("internal").Inc()
		s.logger.Error("リクエストの処理に失敗", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	}
}
