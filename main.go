package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"public-order-engine/internal/config"
	httpapi "public-order-engine/internal/http"
	"public-order-engine/internal/http/handlers"
	"public-order-engine/internal/logger"
	"public-order-engine/internal/menusync"
	"public-order-engine/internal/middleware"
	"public-order-engine/internal/netwatch"
	"public-order-engine/internal/publicapi"
	"public-order-engine/internal/queue"
	"public-order-engine/internal/session"
	"public-order-engine/internal/storage"
	"public-order-engine/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	base, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer base.Sync()
	log := logger.ForStore(base, cfg.StoreSlug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, closeStore, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.StorageDriver,
		SQLitePath:    cfg.SQLitePath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       int(cfg.RedisDB),
		RedisPrefix:   "order-agent:",
		DatabaseURL:   cfg.DatabaseURL,
		ObjectStore: storage.ObjectStoreConfig{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			Prefix:          cfg.ObjectStorePrefix,
			StorageClass:    cfg.ObjectStoreStorageClass,
		},
	})
	if err != nil {
		log.Fatal("storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("storage close failed", zap.Error(err))
		}
	}()
	log.Info("storage ready", zap.String("driver", cfg.StorageDriver))

	api := publicapi.New(cfg.UpstreamBaseURL,
		publicapi.WithOrderTimeout(cfg.OrderRequestTimeout),
		publicapi.WithMenuTimeout(cfg.MenuFetchTimeout),
		publicapi.WithFlavorMarker(cfg.FlavorMarker),
	)

	sess := session.New(session.Options{
		StoreSlug:     cfg.StoreSlug,
		RetryInterval: cfg.OrderRetryInterval,
		RetryWindow:   cfg.OrderRetryWindow,
	}, port, api, log)

	hub := ws.NewHub(log)
	sess.SetBroadcaster(hub)
	wsServer := ws.NewServer(hub, func(ctx context.Context) (any, error) {
		return sess.State(ctx)
	}, cfg.WSHeartbeatInterval, log)

	if cfg.RabbitMQURL != "" {
		qc := connectQueue(cfg, log)
		if qc != nil {
			defer qc.Close()
			publisher := queue.NewPublisher(qc, cfg.EventsExchange, log)
			go publisher.Run(ctx)
			sess.SetEventSink(publisher)
			log.Info("order events enabled", zap.String("exchange", cfg.EventsExchange))
		}
	} else {
		log.Info("order events disabled (RABBITMQ_URL is empty)")
	}

	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		_ = sess.Run(ctx)
	}()

	syncer := menusync.New(api, cfg.StoreSlug, cfg.MenuStreamReconnectDelay, log)
	go func() {
		if err := syncer.Run(ctx, sess.ApplyMenu); err != nil && ctx.Err() == nil {
			log.Error("menu sync stopped", zap.Error(err))
		}
	}()

	var reachable func() bool
	if addr, err := netwatch.AddressFromURL(cfg.UpstreamBaseURL); err != nil {
		log.Warn("connectivity watcher disabled", zap.Error(err))
	} else {
		watcher := netwatch.New(netwatch.TCPProbe(addr, 3*time.Second), cfg.ConnectivityProbeInterval, log)
		reachable = watcher.Online
		go watcher.Run(ctx, sess.OnlineRegained)
	}

	telemetry := middleware.NewTelemetry(log)
	h := &handlers.Handler{
		Session:   sess,
		Logger:    log,
		Telemetry: telemetry,
		Reachable: reachable,
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(cfg, h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order api ready", zap.String("base", "/api"))
		log.Info("order ws ready", zap.String("base", "/ws"))
		log.Info("order agent listening", zap.String("addr", cfg.HTTPAddr), zap.String("upstream", api.BaseURL()))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	// The pending order stays in storage; the next start resumes it.
	cancel()
	select {
	case <-sessionDone:
	case <-ctxShutdown.Done():
		log.Warn("session did not stop in time")
	}
}

// connectQueue returns nil when the broker is unavailable outside
// production, so the agent keeps taking orders without events.
func connectQueue(cfg config.Config, log *zap.Logger) *queue.Client {
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
		return nil
	}
	if err := qc.EnsureExchange(cfg.EventsExchange); err != nil {
		if cfg.Env == "production" {
			log.Fatal("rabbitmq exchange failed", zap.Error(err))
		}
		log.Warn("rabbitmq exchange failed; continuing without events", zap.Error(err))
		_ = qc.Close()
		return nil
	}
	return qc
}
