package driveragent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pickup-market/internal/cart"
	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/backend"
	"pickup-market/internal/general/clock"
	"pickup-market/internal/general/config"
	"pickup-market/internal/general/jwt"
	"pickup-market/internal/general/kvstore"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/rabbitmq"
	"pickup-market/internal/general/scheduler"
	"pickup-market/internal/general/server"
	"pickup-market/internal/geosource"
	"pickup-market/internal/ports"
	"pickup-market/internal/proximity"
	discoveryhandler "pickup-market/internal/software/discovery/handler"
	discoveryservice "pickup-market/internal/software/discovery/service"
	reservationhandler "pickup-market/internal/software/reservation/handler"
	reservationservice "pickup-market/internal/software/reservation/service"
	"pickup-market/internal/tracker"
)

// Run wires the driver agent and blocks until ctx is cancelled.
// port overrides the configured driver port when > 0.
func Run(ctx context.Context, configPath string, port int) error {
	// set up a new logger and context with a static request ID for startup logs
	logger := logger.New("driver-agent")
	ctx = contextx.WithRequestID(ctx, "startup-driver")

	// load a config from file
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	if port <= 0 {
		port = cfg.Agent.DriverPort
	}

	// only drivers share their position
	claims, err := jwt.AgentClaims(cfg.Backend.Token, cfg.Backend.TokenSecret)
	if err != nil {
		logger.Error(ctx, "token_invalid", "Backend token cannot be read", err, nil)
		return err
	}
	if err := jwt.RoleAllowed(claims, user.RoleDriver); err != nil {
		logger.Error(ctx, "token_role_forbidden", "Driver agent needs a DRIVER token", err, map[string]any{"role": claims.Role.String()})
		return fmt.Errorf("driver agent: %w", err)
	}

	// set up the backend client
	api, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout, logger)
	if err != nil {
		logger.Error(ctx, "backend_client_failed", "Failed to set up backend client", err, nil)
		return err
	}

	// open the cart store
	store, closeStore, err := kvstore.Open(ctx, cfg, claims.UserID(), logger)
	if err != nil {
		logger.Error(ctx, "kvstore_open_failed", "Failed to open cart store", err, map[string]any{"store": cfg.Cart.Store})
		return err
	}
	defer closeStore()
	reservations := cart.New(store, cfg.Cart.Key, logger)

	// position mirrors: the backend always, the fanout when enabled
	mirrors := []ports.LocationMirror{tracker.BackendMirror(api)}
	if cfg.RabbitMQ.Enabled {
		rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
		if err != nil {
			logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		mirrors = append(mirrors, rabbitmq.NewLocationPublisher(rmq, claims.UserID()))
	}

	// geolocation backends in fallback order
	var static *geo.Point
	if cfg.Geo.Static != nil {
		static = &geo.Point{Lat: cfg.Geo.Static.Lat, Lng: cfg.Geo.Static.Lng}
	}
	source := geosource.NewChain(logger,
		geosource.NewNative(cfg.Geo.NativeBridgeURL),
		geosource.NewWeb(cfg.Geo.WebEndpoint, cfg.Geo.WebAPIKey),
		geosource.NewStatic(static),
	)

	// one scheduler drives every periodic task
	sched := scheduler.New(clock.Real{}, logger, cfg.Agent.TickResolution)

	tr := tracker.New(source, sched, logger, tracker.Config{
		FlushInterval: cfg.Tracker.FlushInterval,
		Options: geosource.Options{
			HighAccuracy: cfg.Geo.HighAccuracy,
			Timeout:      cfg.Geo.ReadTimeout,
			TickTimeout:  cfg.Geo.WatchTickTimeout,
			PollInterval: cfg.Geo.PollInterval,
		},
	}, mirrors...)
	if _, err := tr.Start(ctx); err != nil {
		logger.Error(ctx, "tracker_start_failed", "Failed to start location tracking", err, nil)
		return err
	}
	defer tr.Stop()

	// services
	discovery := discoveryservice.NewDiscoveryService(logger, api, tr, reservations, discoveryservice.Policies{
		Items: proximity.Policy{Limit: cfg.Discovery.ItemLimit},
		Trash: proximity.Policy{RadiusKM: cfg.Discovery.TrashRadiusKM},
	})
	lifecycle := reservationservice.NewReservationService(logger, api, reservations, user.RoleDriver)

	// local API
	engine := server.NewEngine("driver-agent", cfg.Agent.AllowedOrigins)
	v1 := engine.Group("/v1", jwt.Identity(claims, user.RoleDriver))
	v1.GET("/me", jwt.WhoAmI)
	discoveryhandler.NewDiscoveryHTTPHandler(discovery, tr, reservations, logger).RegisterRoutes(v1)
	reservationhandler.NewReservationHTTPHandler(lifecycle, logger, user.RoleDriver, nil).RegisterRoutes(v1)

	logger.Info(ctx, "agent_started", "Driver agent started", map[string]any{
		"driver_id":   claims.UserID(),
		"port":        port,
		"geo_sources": source.Backends(),
		"cart_store":  cfg.Cart.Store,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx, logger, port, engine) })
	g.Go(func() error {
		st, err := tr.AwaitFirstFix(gctx)
		if err != nil {
			return nil
		}
		logger.Info(gctx, "location_gate_settled", "Location gate left waiting", map[string]any{"gate": string(st.Gate)})
		return nil
	})

	return g.Wait()
}
