package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/quotaledger/internal/audit"
	auditdomain "github.com/smallbiznis/quotaledger/internal/audit/domain"
	"github.com/smallbiznis/quotaledger/internal/auth"
	"github.com/smallbiznis/quotaledger/internal/config"
	"github.com/smallbiznis/quotaledger/internal/events"
	eventsdomain "github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/internal/observability"
	obslogger "github.com/smallbiznis/quotaledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/quotaledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/quotaledger/internal/observability/tracing"
	"github.com/smallbiznis/quotaledger/internal/quota"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	audit.Module,
	events.Module,
	ratelimit.Module,
	quota.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine          *gin.Engine
	cfg             config.Config
	verifier        *auth.Verifier
	quotaSvc        quotadomain.Service
	eventSvc        eventsdomain.Service
	auditSvc        auditdomain.Service
	shipmentLimiter *ratelimit.ShipmentLimiter
	log             *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Verifier        *auth.Verifier
	QuotaSvc        quotadomain.Service
	EventSvc        eventsdomain.Service
	AuditSvc        auditdomain.Service
	ShipmentLimiter *ratelimit.ShipmentLimiter `optional:"true"`
	Log             *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		verifier:        p.Verifier,
		quotaSvc:        p.QuotaSvc,
		eventSvc:        p.EventSvc,
		auditSvc:        p.AuditSvc,
		shipmentLimiter: p.ShipmentLimiter,
		log:             p.Log.Named("http"),
	}

	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/v1")
	api.Use(s.AuthRequired())

	quotas := api.Group("/quotas")
	quotas.POST("", s.InitializeQuota)
	quotas.GET("", s.ListQuotas)
	quotas.GET("/:concession_id/:holder", s.GetQuota)
	quotas.PATCH("/:concession_id/:holder", s.UpdateQuota)
	quotas.GET("/:concession_id/:holder/utilization", s.GetUtilization)
	quotas.PATCH("/:concession_id/:holder/details", s.UpdateConcessionDetails)
	quotas.POST("/:concession_id/:holder/suspend", s.SuspendQuota)
	quotas.POST("/:concession_id/:holder/reactivate", s.ReactivateQuota)
	quotas.POST("/:concession_id/:holder/usage", s.ShipmentRateLimit(), s.UseQuota)
	quotas.GET("/:concession_id/:holder/usage", s.ListUsage)

	api.POST("/transfers", s.TransferQuota)
	api.GET("/transfers", s.ListTransfers)

	api.GET("/shipments/:shipment_id", s.GetShipment)
	api.PATCH("/shipments/:shipment_id/logistics", s.RecordShipmentLogistics)

	api.GET("/concessions/:concession_id/events", s.ListEvents)
	api.GET("/concessions/:concession_id/events/stream", s.StreamEvents)

	api.GET("/audit-logs", s.ListAuditLogs)
}
