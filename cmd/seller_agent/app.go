package selleragent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/backend"
	"pickup-market/internal/general/clock"
	"pickup-market/internal/general/config"
	"pickup-market/internal/general/contracts"
	"pickup-market/internal/general/jwt"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/rabbitmq"
	"pickup-market/internal/general/scheduler"
	"pickup-market/internal/general/server"
	livehandler "pickup-market/internal/software/livelocation/handler"
	liveservice "pickup-market/internal/software/livelocation/service"
	reservationhandler "pickup-market/internal/software/reservation/handler"
	reservationservice "pickup-market/internal/software/reservation/service"
)

const refreshTaskName = "contacts_refresh"

// Run wires the seller agent and blocks until ctx is cancelled.
// port overrides the configured seller port when > 0; prefetch applies to the fanout consumer.
func Run(ctx context.Context, configPath string, port, prefetch int) error {
	logger := logger.New("seller-agent")
	ctx = contextx.WithRequestID(ctx, "startup-seller")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	if port <= 0 {
		port = cfg.Agent.SellerPort
	}

	claims, err := jwt.AgentClaims(cfg.Backend.Token, cfg.Backend.TokenSecret)
	if err != nil {
		logger.Error(ctx, "token_invalid", "Backend token cannot be read", err, nil)
		return err
	}
	if err := jwt.RoleAllowed(claims, user.RoleSeller); err != nil {
		logger.Error(ctx, "token_role_forbidden", "Seller agent needs a SELLER token", err, map[string]any{"role": claims.Role.String()})
		return fmt.Errorf("seller agent: %w", err)
	}

	api, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout, logger)
	if err != nil {
		logger.Error(ctx, "backend_client_failed", "Failed to set up backend client", err, nil)
		return err
	}

	// the fanout feed is optional; without it every read goes to the backend
	var feed *liveservice.Feed
	var rmq *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rmq, err = rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		feed = liveservice.NewFeed(logger)
	}

	lifecycle := reservationservice.NewReservationService(logger, api, nil, user.RoleSeller)
	refresher := reservationservice.NewListRefresher(lifecycle, logger)
	live := liveservice.NewLiveLocationService(logger, api, api, feed, 0)

	sched := scheduler.New(clock.Real{}, logger, cfg.Agent.TickResolution)
	unregister, err := sched.Register(refreshTaskName, cfg.Agent.RefreshInterval, refresher.Refresh)
	if err != nil {
		return err
	}
	defer unregister()

	engine := server.NewEngine("seller-agent", cfg.Agent.AllowedOrigins)
	v1 := engine.Group("/v1", jwt.Identity(claims, user.RoleSeller))
	v1.GET("/me", jwt.WhoAmI)
	reservationhandler.NewReservationHTTPHandler(lifecycle, logger, user.RoleSeller, refresher).RegisterRoutes(v1)
	livehandler.NewLiveLocationHTTPHandler(live, logger).RegisterRoutes(v1)

	logger.Info(ctx, "agent_started", "Seller agent started", map[string]any{
		"seller_id":        claims.UserID(),
		"port":             port,
		"refresh_interval": cfg.Agent.RefreshInterval.String(),
		"live_feed":        feed != nil,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx, logger, port, engine) })
	if rmq != nil {
		g.Go(func() error {
			consumeFeed(gctx, logger, rmq, feed, claims.UserID(), prefetch)
			return nil
		})
	}

	return g.Wait()
}

// consumeFeed keeps a fanout subscription open until ctx is done, resubscribing with backoff.
func consumeFeed(ctx context.Context, log *logger.Logger, rmq *rabbitmq.Client, feed *liveservice.Feed, sellerID string, prefetch int) {
	backoff := time.Second
	for {
		err := rmq.Subscribe(ctx, contracts.ExchangeLocationFanout, "seller-"+sellerID, prefetch, feed.HandleDelivery)
		if ctx.Err() != nil {
			return
		}
		log.Error(ctx, "location_feed_interrupted", "Location fanout subscription ended", err, map[string]any{
			"backoff_ms": backoff.Milliseconds(),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
