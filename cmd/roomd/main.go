package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"room-occupancy-backend/config"
	"room-occupancy-backend/internal/api"
	"room-occupancy-backend/internal/booking"
	"room-occupancy-backend/internal/db"
	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/mw"
	"room-occupancy-backend/internal/notification"
	"room-occupancy-backend/internal/realtime"
	"room-occupancy-backend/internal/store"
	"room-occupancy-backend/internal/sweeper"
)

func main() {
	logger := log.New(os.Stdout, "room-backend ", log.LstdFlags)

	configFlag := pflag.StringP("config", "c", "", "path to the YAML configuration file (overrides CONFIG_PATH)")
	pflag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := seedInventory(ctx, appStore, cfg.Inventory); err != nil {
		logger.Fatalf("failed to seed inventory: %v", err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Lease)
	if err != nil {
		logger.Fatalf("failed to set up leases: %v", err)
	}
	defer closeLocker()
	logger.Printf("using %s leases", cfg.Lease.Backend)

	// Change notifier: every committed change fans out to these sinks.
	responseCache := cache.New(time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, 10*time.Minute)
	hub := realtime.NewHub(32, 25*time.Second)
	dispatcher := event.NewDispatcher(cfg.Events.QueueSize)
	dispatcher.Register("cache", mw.NewCacheFlusher(responseCache))
	dispatcher.Register("sse", hub)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, cfg.Push.Icon)
		pool.Start(ctx)
		dispatcher.Register("webpush", pool)
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}
	go dispatcher.Run(ctx)

	bookings, err := booking.NewService(appStore, locker, dispatcher,
		booking.WithLeaseWait(cfg.Lease.Wait),
		booking.WithHistoryPageSize(cfg.Booking.HistoryDefaultPageSize, cfg.Booking.HistoryMaxPageSize),
	)
	if err != nil {
		logger.Fatalf("failed to create booking service: %v", err)
	}

	// Occupancy left over from an unclean shutdown is repaired before serving.
	if repaired, err := bookings.Reconcile(ctx); err != nil {
		logger.Fatalf("startup reconcile failed: %v", err)
	} else {
		logger.Printf("startup reconcile complete (%d row(s) repaired)", repaired)
	}

	go sweeper.NewService(cfg.Sweeper, bookings).Run(ctx)

	handler := api.NewHandler(bookings, appStore, webpushOptions, responseCache)
	router := api.NewRouter(cfg.Server, handler, hub, responseCache)
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Request contexts derive from ctx, so this also closes event streams.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

func newLocker(ctx context.Context, cfg config.LeaseConfig) (lease.Locker, func(), error) {
	switch cfg.Backend {
	case "local", "":
		return lease.NewLocal(), func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return lease.NewRedis(client, cfg.TTL, cfg.RetryInterval), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lease backend %q", cfg.Backend)
	}
}

func seedInventory(ctx context.Context, s store.Store, inv config.InventoryConfig) error {
	rooms := make([]model.Room, 0, len(inv.Rooms))
	for _, r := range inv.Rooms {
		rooms = append(rooms, model.Room{ID: r.ID, Number: r.Number, Floor: r.Floor})
	}
	if err := s.UpsertRooms(ctx, rooms); err != nil {
		return fmt.Errorf("rooms: %w", err)
	}

	users := make([]model.User, 0, len(inv.Users))
	for _, u := range inv.Users {
		users = append(users, model.User{ID: u.ID, Name: u.Name, Email: u.Email, Department: u.Department})
	}
	if err := s.UpsertUsers(ctx, users); err != nil {
		return fmt.Errorf("users: %w", err)
	}
	return nil
}
