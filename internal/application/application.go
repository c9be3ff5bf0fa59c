package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mixtura/petube/internal/auth"
	"github.com/mixtura/petube/internal/config"
	"github.com/mixtura/petube/internal/database"
	"github.com/mixtura/petube/internal/handler"
	"github.com/mixtura/petube/internal/partition"
	"github.com/mixtura/petube/internal/router"
	"github.com/mixtura/petube/internal/service"
)

// API is the HTTP + WebSocket edge coordinator application.
type API struct {
	cfg         *config.Config
	srv         *http.Server
	db          *gorm.DB
	coordinator *service.RoomCoordinator
	logger      *zap.Logger
}

// NewAPI creates the application: validates config, prepares the schema,
// opens the DB, builds the router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.DB.Driver == "postgres" {
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if cfg.DB.Driver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}

	keyPEM, err := cfg.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("auth key: %w", err)
	}
	gate, err := auth.NewGate(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("auth key: %w", err)
	}

	parts := partition.NewRouter()
	coordinator := service.NewRoomCoordinator(db, parts, logger)
	registry := service.NewPairingRegistry(db, parts, logger, cfg.PairingSessionTTL)

	deviceHandler := handler.NewDeviceHandler(registry, logger)
	roomWS := handler.NewRoomWSHandler(coordinator, gate,
		cfg.WSReadBufferSize, cfg.WSWriteBufferSize, cfg.WSMaxMessageSize, logger)
	health := handler.NewHealthHandler()

	r := router.New(deviceHandler, roomWS, health, gate)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, coordinator: coordinator, logger: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts
// down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", a.srv.Addr)
	log.Printf("  Health:    %s/health", base)
	log.Printf("  Devices:   %s/devices/my", base)
	log.Printf("  Room WS:   ws://%s:%s/room/:room_id", host, a.cfg.HTTPPort)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.logger.Sync()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
