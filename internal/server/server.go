package server

import (
	"context"
	"net/http"
	"time"

	catalogdomain "github.com/commercekit/paywall/internal/catalog/domain"
	"github.com/commercekit/paywall/internal/config"
	entitlementdomain "github.com/commercekit/paywall/internal/entitlement/domain"
	identitydomain "github.com/commercekit/paywall/internal/identity/domain"
	"github.com/commercekit/paywall/internal/metrics"
	orderdomain "github.com/commercekit/paywall/internal/order/domain"
	paymentdomain "github.com/commercekit/paywall/internal/payment/domain"
	userdomain "github.com/commercekit/paywall/internal/user/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	access := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		access.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.ListenAddr))
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
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	verifier       identitydomain.TokenVerifier
	paymentSvc     paymentdomain.Service
	entitlementSvc entitlementdomain.Service
	catalogSvc     catalogdomain.Service
	userSvc        userdomain.Service
	orders         orderdomain.Repository
	metrics        *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Log            *zap.Logger
	Verifier       identitydomain.TokenVerifier
	PaymentSvc     paymentdomain.Service
	EntitlementSvc entitlementdomain.Service
	CatalogSvc     catalogdomain.Service
	UserSvc        userdomain.Service
	Orders         orderdomain.Repository
	Metrics        *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		log:            p.Log.Named("http.server"),
		verifier:       p.Verifier,
		paymentSvc:     p.PaymentSvc,
		entitlementSvc: p.EntitlementSvc,
		catalogSvc:     p.CatalogSvc,
		userSvc:        p.UserSvc,
		orders:         p.Orders,
		metrics:        p.Metrics,
	}

	svc.registerPaymentRoutes()
	svc.registerUserRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/api/v1/payments")

	payments.POST("/webhook", s.PaymentWebhook)

	authed := payments.Group("", s.AuthRequired())
	{
		authed.POST("/checkout/:product_id", s.CreateCheckout)
		authed.GET("/order-status/:product_id", s.OrderStatus)
		authed.GET("/orders", s.ListOrders)
		authed.GET("/validate", s.ValidateCatalog)
	}
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/api/v1/users", s.AuthRequired())

	users.POST("", s.RegisterUser)
	users.GET("", s.ListUsers)
	users.GET("/:id", s.GetUser)
	users.DELETE("/:id", s.DeleteUser)
}
