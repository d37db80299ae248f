package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jeogo/casnos-sub000/internal/config"
	"github.com/jeogo/casnos-sub000/internal/discovery"
	"github.com/jeogo/casnos-sub000/internal/httpapi"
	"github.com/jeogo/casnos-sub000/internal/hub"
	"github.com/jeogo/casnos-sub000/internal/presence"
	"github.com/jeogo/casnos-sub000/internal/queue"
	"github.com/jeogo/casnos-sub000/internal/reset"
	"github.com/jeogo/casnos-sub000/internal/socketapi"
	"github.com/jeogo/casnos-sub000/internal/store/sqlite"
	"github.com/jeogo/casnos-sub000/internal/telemetry"

	"github.com/igm/sockjs-go/sockjs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("casnos-server")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	h := hub.New()
	manager := queue.NewManager(st, h, queue.Options{PrintTimeout: cfg.PrintTimeout})
	registry := presence.NewRegistry(st, h, cfg.StaleAfter)
	scheduler := reset.NewScheduler(st, h, reset.Config{
		Enabled:        cfg.ResetEnabled,
		ResetTime:      cfg.ResetTime,
		TicketsEnabled: cfg.ResetTickets,
		FilesEnabled:   cfg.ResetFiles,
		CacheEnabled:   cfg.ResetCache,
		ArtifactDirs:   cfg.ResetArtifactDirs,
		RetentionDays:  cfg.ResetRetentionDays,
	})
	dispatcher := socketapi.NewDispatcher(h, registry, manager, scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	go dispatcher.RunBroadcasts(ctx, socketapi.BroadcastConfig{
		QueueInterval:      cfg.QueueInterval,
		SweepInterval:      cfg.SweepInterval,
		DeviceListInterval: cfg.DeviceListInterval,
	})

	httpPort, _ := strconv.Atoi(cfg.Port)
	responder := discovery.NewResponder(discovery.Config{
		UDPPort:           cfg.UDPPort,
		HTTPPort:          httpPort,
		BroadcastInterval: cfg.BroadcastInterval,
		Version:           version,
	}, registry)
	go func() {
		if err := responder.Run(ctx); err != nil {
			log.Printf("discovery error: %v", err)
		}
	}()

	apiHandler := httpapi.NewHandler(st, manager, registry, scheduler, httpapi.Options{Env: cfg.Env})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, dispatcher.HandleSession))
	mux.Handle("/", apiHandler.Routes())

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "casnos-server")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("casnos-server listening on %s (udp discovery :%d)", server.Addr, cfg.UDPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
