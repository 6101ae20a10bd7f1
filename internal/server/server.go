package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/casebridge/internal/activity"
	activitydomain "github.com/smallbiznis/casebridge/internal/activity/domain"
	"github.com/smallbiznis/casebridge/internal/audit"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	"github.com/smallbiznis/casebridge/internal/bulksync"
	"github.com/smallbiznis/casebridge/internal/caserecord"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/notification"
	obslogger "github.com/smallbiznis/casebridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/casebridge/internal/observability/metrics"
	"github.com/smallbiznis/casebridge/internal/organization"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	"github.com/smallbiznis/casebridge/internal/payment"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
	"github.com/smallbiznis/casebridge/internal/user"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(keylock.New),
	ledger.Module,
	audit.Module,
	organization.Module,
	user.Module,
	caserecord.Module,
	payment.Module,
	notification.Module,
	activity.Module,
	bulksync.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obsmetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
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

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	orgSvc       orgdomain.Service
	userSvc      userdomain.Service
	caseSvc      casedomain.Service
	paymentSvc   paymentdomain.Service
	activitySvc  activitydomain.Service
	auditSvc     auditdomain.Service
	orchestrator *bulksync.Orchestrator
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	OrgSvc       orgdomain.Service
	UserSvc      userdomain.Service
	CaseSvc      casedomain.Service
	PaymentSvc   paymentdomain.Service
	ActivitySvc  activitydomain.Service
	AuditSvc     auditdomain.Service
	Orchestrator *bulksync.Orchestrator
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		orgSvc:       p.OrgSvc,
		userSvc:      p.UserSvc,
		caseSvc:      p.CaseSvc,
		paymentSvc:   p.PaymentSvc,
		activitySvc:  p.ActivitySvc,
		auditSvc:     p.AuditSvc,
		orchestrator: p.Orchestrator,
	}

	svc.registerExternalRoutes()
	svc.registerPortalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerExternalRoutes is the push surface for the system of record. Every
// route runs as the external-system actor behind the shared token.
func (s *Server) registerExternalRoutes() {
	external := s.engine.Group("/api/v1/external", s.ExternalPushAuth())

	external.PUT("/organisations", s.UpsertOrganisation)
	external.PUT("/users", s.UpsertUser)
	external.PUT("/cases", s.UpsertCase)

	external.POST("/payments", s.UpsertPayment)
	external.PUT("/payments", s.UpsertPayment)
	external.PUT("/payments/:external_ref", s.UpsertPaymentByRef)
	external.DELETE("/payments/:external_ref", s.DeletePayment)
	external.POST("/payments/:external_ref/reverse", s.ReversePayment)

	external.POST("/activities", s.AppendActivity)
	external.POST("/messages", s.AppendMessage)

	external.POST("/sync", s.BulkSync)
}

// registerPortalRoutes serves the internal case-management portal.
func (s *Server) registerPortalRoutes() {
	portal := s.engine.Group("/api/v1", s.UserContext())

	portal.GET("/cases/:id", s.GetCase)
	portal.GET("/cases/:id/payments", s.ListCasePayments)
	portal.GET("/cases/:id/activities", s.ListCaseActivities)
	portal.GET("/cases/:id/messages", s.ListCaseMessages)
	portal.POST("/cases/:id/messages", s.PostCaseMessage)
	portal.POST("/cases/:id/archive", s.ArchiveCase)
	portal.DELETE("/cases/:id", s.RequireSuperAdmin(), s.DeleteCase)

	portal.POST("/cases/:id/mute", s.MuteCase)
	portal.DELETE("/cases/:id/mute", s.UnmuteCase)
	portal.POST("/cases/:id/block", s.BlockCase)
	portal.DELETE("/cases/:id/block", s.UnblockCase)

	portal.GET("/audit-logs", s.ListAuditLogs)
}
