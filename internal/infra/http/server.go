package http

import (
	"net/http"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/config"
	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/db"
	"github.com/craterface77/liquidity-guard-be/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	pools     *usecase.PoolService
	quotes    *usecase.QuoteEngine
	drafts    *usecase.DraftOrchestrator
	finalizer *usecase.FinalizationReconciler
	ledger    *usecase.EvidenceLedger
	claims    *usecase.ClaimComputer
	reserve   *usecase.ReserveService
	policies  usecase.PolicyStore

	webhook     domain.WebhookVerifier
	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

// ServerDeps carries the wired services; nil entries disable their routes
// with a config error instead of panicking.
type ServerDeps struct {
	Pools     *usecase.PoolService
	Quotes    *usecase.QuoteEngine
	Drafts    *usecase.DraftOrchestrator
	Finalizer *usecase.FinalizationReconciler
	Ledger    *usecase.EvidenceLedger
	Claims    *usecase.ClaimComputer
	Reserve   *usecase.ReserveService
	Policies  usecase.PolicyStore

	Webhook     domain.WebhookVerifier
	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, store *db.Store, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		store:       store,
		r:           r,
		pools:       deps.Pools,
		quotes:      deps.Quotes,
		drafts:      deps.Drafts,
		finalizer:   deps.Finalizer,
		ledger:      deps.Ledger,
		claims:      deps.Claims,
		reserve:     deps.Reserve,
		policies:    deps.Policies,
		webhook:     deps.Webhook,
		adminAPIKey: cfg.AdminAPIKey,
		rateLimiter: deps.RateLimiter,
	}
	s.rateLimitRequests = cfg.RateLimitRequests
	s.rateLimitWindow = cfg.RateLimitWindow()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.Available() {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.GET("/pools", s.handleListPools)
		v1.POST("/pricing/quote", s.handleQuote)

		v1.POST("/policies/draft", s.handleCreateDraft)
		v1.POST("/policies/finalize", s.handleFinalize)
		v1.GET("/policies", s.handleListPolicies)
		v1.GET("/policies/:id", s.handleGetPolicy)

		v1.POST("/claims/preview", s.handleClaimPreview)
		v1.POST("/claims/sign", s.handleClaimSign)
		v1.GET("/claims", s.handleListClaims)
		v1.GET("/claims/queue", s.handleClaimQueue)

		v1.GET("/reserve/overview", s.handleReserveOverview)

		v1.POST("/admin/anchor", s.handleAdminAnchor)
		v1.POST("/admin/whitelist", s.handleAdminWhitelist)

		v1.POST("/internal/validator/anchor", s.handleValidatorAnchor)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
