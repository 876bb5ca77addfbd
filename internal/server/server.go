package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/portflow/portflow/internal/audit"
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	"github.com/portflow/portflow/internal/config"
	"github.com/portflow/portflow/internal/debitnote"
	debitnotedomain "github.com/portflow/portflow/internal/debitnote/domain"
	"github.com/portflow/portflow/internal/docnumber"
	"github.com/portflow/portflow/internal/observability"
	obsmiddleware "github.com/portflow/portflow/internal/observability/logger"
	obsmetrics "github.com/portflow/portflow/internal/observability/metrics"
	obstracing "github.com/portflow/portflow/internal/observability/tracing"
	"github.com/portflow/portflow/internal/taskrecord"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	audit.Module,
	docnumber.Module,
	taskrecord.Module,
	debitnote.Module,
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ActorMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	taskRecordSvc taskrecorddomain.Service
	debitNoteSvc  debitnotedomain.Service
	auditSvc      auditdomain.Service
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	TaskRecordSvc taskrecorddomain.Service
	DebitNoteSvc  debitnotedomain.Service
	AuditSvc      auditdomain.Service
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		taskRecordSvc: p.TaskRecordSvc,
		debitNoteSvc:  p.DebitNoteSvc,
		auditSvc:      p.AuditSvc,
		obsMetrics:    p.ObsMetrics,
	}
}

func registerRoutes(s *Server) {
	s.RegisterBillingRoutes()
}

// RegisterBillingRoutes mounts the job-order scoped billing surface.
func (s *Server) RegisterBillingRoutes() {
	scope := s.engine.Group("/v1/jobOrders/:jobOrderId/taskTypes/:taskType")

	notes := scope.Group("/debitNotes")
	notes.POST("", s.GenerateDebitNote)
	notes.GET("/:debitNoteId", s.GetDebitNote)
	notes.DELETE("/:debitNoteId", s.DeleteDebitNote)

	records := scope.Group("/taskRecords")
	records.POST("", s.CreateTaskRecord)
	records.GET("", s.ListTaskRecords)
	records.GET("/:taskRecordId", s.GetTaskRecord)
	records.PUT("/:taskRecordId", s.UpdateTaskRecord)
	records.DELETE("/:taskRecordId", s.DeleteTaskRecord)

	s.engine.GET("/v1/auditLogs/:targetType/:targetId", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
