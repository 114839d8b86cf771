package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	generationdomain "github.com/smallbiznis/creditgate/internal/generation/domain"
	"github.com/smallbiznis/creditgate/internal/observability"
	obsmiddleware "github.com/smallbiznis/creditgate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditgate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creditgate/internal/observability/tracing"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	checkout    checkoutdomain.Service
	credits     creditdomain.Service
	limiter     ratelimit.Limiter
	generations generationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Checkout    checkoutdomain.Service
	Credits     creditdomain.Service
	Limiter     ratelimit.Limiter
	Generations generationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		checkout:    p.Checkout,
		credits:     p.Credits,
		limiter:     p.Limiter,
		generations: p.Generations,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Payments --------
	api.POST("/payments", s.CreatePayment)
	api.POST("/payments/confirm", s.ConfirmPayment)
	api.POST("/webhooks/stripe", s.HandleStripeWebhook)

	// -------- Credits --------
	api.POST("/credits/check", s.CheckCredits)

	// -------- Anonymous usage --------
	api.POST("/usage/check", s.CheckUsage)
	api.POST("/usage/use", s.UseUsage)

	// -------- Generations --------
	api.POST("/generations", s.Generate)
	api.POST("/generations/save", s.SaveGeneration)
	api.POST("/generations/:id/feedback", s.SubmitFeedback)
	api.POST("/generations/:id/rating", s.RateGeneration)
}
