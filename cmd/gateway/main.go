package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/cmd/gateway/config"
	"storefront/internal/events"
	"storefront/internal/gateway"
	"storefront/internal/observability"
	"storefront/internal/orders"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("gateway error: %v", err)
	}
}

func run(ctx context.Context) error {
	gatewayCfg, err := config.LoadGateway()
	if err != nil {
		return err
	}

	collaborators, login, err := buildCollaborators()
	if err != nil {
		return err
	}

	audit, auditCleanup, err := buildAuditStore(ctx)
	if err != nil {
		return err
	}
	defer auditCleanup()

	eventStore, eventCleanup, err := buildEventStore(ctx)
	if err != nil {
		return err
	}
	defer eventCleanup()

	metrics := observability.NewMetrics()
	hub := events.NewHub()
	go hub.Run()

	var publisher events.Publisher = hub
	if eventStore != nil {
		publisher = events.NewMultiPublisher(hub, eventStore)
	}

	service := orders.NewService(orders.ServiceConfig{
		Clients: collaborators,
		Audit:   audit,
		Events:  publisher,
		Metrics: metrics,
		Logf:    log.Printf,
	})

	var limiter *orders.RateLimiter
	if gatewayCfg.RateLimitInterval > 0 && gatewayCfg.RateLimitBurst > 0 {
		limiter = orders.NewRateLimiter(gatewayCfg.RateLimitInterval, gatewayCfg.RateLimitBurst, metrics.AddRateLimitWait)
	}

	server := gateway.NewServer(gateway.Config{
		Service: service,
		Login:   login,
		Hub:     hub,
		Limiter: limiter,
		Metrics: metrics,
		Logf:    log.Printf,
	})
	httpSrv := &http.Server{
		Addr:    gatewayCfg.Addr,
		Handler: server.Handler(),
	}

	obsSrv := startObservabilityServer(metrics)

	log.Printf("gateway listening on %s", gatewayCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		metrics.MarkShutdown(0)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		if obsSrv != nil {
			obsCtx, obsCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer obsCancel()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func startObservabilityServer(metrics *observability.Metrics) *http.Server {
	cfg := config.LoadObservability()
	if cfg.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv
}
