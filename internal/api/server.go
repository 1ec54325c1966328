// Package api exposes the node over HTTP with gin.
//
// Writes act as the account named in the X-Account header. The header is
// trusted as sent: there is no signature or session behind it, so anyone who
// can reach the server can act as any account, the owner included. Run it
// behind an authenticating proxy, or set HTTP_ADMIN_ROUTES=false to drop the
// owner-only endpoints entirely.
package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"dadchain/internal/config"
	"dadchain/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = 10 * time.Minute
)

// Streamer serves the live event websocket.
type Streamer interface {
	ServeWs(w http.ResponseWriter, r *http.Request)
}

type Server struct {
	cfg     config.HTTPConfig
	router  *gin.Engine
	limiter *IPRateLimiter
}

func NewServer(cfg config.HTTPConfig, backend Backend, stream Streamer) *Server {
	s := &Server{
		cfg:     cfg,
		router:  gin.New(),
		limiter: NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
	s.setupRoutes(&Env{Node: backend}, stream)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(env *Env, stream Streamer) {
	router := s.router
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(cors.New(corsConfig(s.cfg.AllowedOrigins)))

	router.GET("/healthz", env.Health)

	api := router.Group("/api")
	{
		api.GET("/stats", env.GetStats)
		api.GET("/contracts", env.GetContracts)
		api.GET("/jokes", env.GetJokes)
		api.GET("/jokes/:id", env.GetJoke)
		api.GET("/jokes/:id/likes/:address", env.GetLike)
		api.GET("/users/:address", env.GetUser)
		api.GET("/users/:address/badges/:badgeId", env.GetBadgeClaim)
		api.GET("/badges/tiers", env.GetBadgeTiers)
		api.GET("/badges/tokens/:tokenId", env.GetBadgeToken)
		api.GET("/token", env.GetToken)
		api.GET("/token/balance/:address", env.GetBalance)
		api.GET("/token/allowance/:owner/:spender", env.GetAllowance)
	}

	writes := api.Group("", RateLimitMiddleware(s.limiter), AccountMiddleware())
	{
		writes.POST("/jokes", env.SubmitJoke)
		writes.POST("/jokes/:id/like", env.LikeJoke)
		writes.POST("/jokes/:id/tip", env.TipJoke)
		writes.POST("/badges/:badgeId/claim", env.ClaimBadge)
		writes.POST("/badges/tokens/:tokenId/transfer", env.TransferBadge)
		writes.POST("/token/approve", env.Approve)
		writes.POST("/token/transfer", env.Transfer)
	}

	if s.cfg.AdminRoutes {
		writes.POST("/token/mint", env.Mint)
		writes.POST("/admin/nft-address", env.SetNFTAddress)
		writes.POST("/admin/base-uri", env.SetBaseURI)
		writes.POST("/admin/minter", env.SetMinter)
	} else {
		logger.Warn("Admin routes disabled")
	}

	if stream != nil {
		router.GET("/ws", func(c *gin.Context) {
			stream.ServeWs(c.Writer, c.Request)
		})
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", AccountHeader},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.limiter.Run(ctx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
