package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    redis "github.com/redis/go-redis/v9"

    "techdispatch/internal/api"
    "techdispatch/internal/buildinfo"
    "techdispatch/internal/config"
    "techdispatch/internal/geocode"
    "techdispatch/internal/metrics"
    "techdispatch/internal/opt"
    "techdispatch/internal/store"
    "techdispatch/internal/summary"
)

func main() {
    cfg, err := config.Load()
    if err != nil { log.Fatalf("config: %v", err) }
    engineCfg, err := config.LoadEngineConfig(cfg.DispatchConfigPath)
    if err != nil { log.Fatalf("dispatch config: %v", err) }

    opts := []api.Option{api.WithSummarizer(newSummarizer(cfg))}
    if g := newGeocoder(cfg); g != nil {
        opts = append(opts, api.WithGeocoder(g))
    }
    srvDeps, err := api.NewServer(cfg, engineCfg, opts...)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    if cfg.SeedFile != "" {
        if err := store.SeedFile(context.Background(), srvDeps.Store, "t_demo", cfg.SeedFile); err != nil {
            log.Fatalf("seed %s: %v", cfg.SeedFile, err)
        }
        log.Printf("seeded tenant=t_demo file=%s", cfg.SeedFile)
    }

    metrics.RegisterDefault()
    mux := http.NewServeMux()

    // Dispatch
    mux.HandleFunc("/v1/dispatch/evaluate", srvDeps.EvaluateHandler)
    mux.HandleFunc("/v1/dispatch/config", srvDeps.DispatchConfigHandler)
    mux.HandleFunc("/v1/dispatch/history", srvDeps.HistoryHandler)
    mux.HandleFunc("/v1/dispatch/stream", srvDeps.StreamHandler)
    mux.HandleFunc("/v1/dispatch/ws", srvDeps.DispatchWSHandler)
    mux.HandleFunc("/v1/technicians/checkins", srvDeps.CheckInsHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/dispatch/config", srvDeps.AdminDispatchConfigHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq/", srvDeps.WebhookDLQHandler)

    // Health and introspection
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.HandleFunc("/debug/info", srvDeps.DebugJSON)
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":" + cfg.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           srvDeps.Middleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    go func() {
        log.Printf("API listening on %s version=%s", addr, buildinfo.Info()["version"])
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatalf("server error: %v", err)
        }
    }()

    <-ctx.Done()
    log.Printf("shutting down")
    close(worker.Stop)
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Printf("shutdown: %v", err)
    }
    if c, ok := srvDeps.Store.(interface{ Close() error }); ok {
        _ = c.Close()
    }
}

func newSummarizer(cfg config.Config) opt.Summarizer {
    switch cfg.Summary.Mode {
    case "openai":
        s, err := summary.NewOpenAI(summary.OpenAIConfig{APIKey: cfg.Summary.APIKey, BaseURL: cfg.Summary.BaseURL, Model: cfg.Summary.Model})
        if err != nil { log.Fatalf("summary: %v", err) }
        log.Printf("summary mode=openai model=%s", s.Model())
        return s
    case "off":
        return nil
    default:
        return summary.Template{}
    }
}

// newGeocoder returns ORS, fronted by the Redis cache when REDIS_URL is set, or nil
// when no API key is configured.
func newGeocoder(cfg config.Config) geocode.Geocoder {
    if !cfg.Geocode.Enabled() { return nil }
    ors, err := geocode.NewORS(cfg.Geocode.APIKey, cfg.Geocode.BaseURL, cfg.Geocode.RPS)
    if err != nil { log.Fatalf("geocoder: %v", err) }
    if cfg.RedisURL == "" { return ors }
    o, err := redis.ParseURL(cfg.RedisURL)
    if err != nil {
        log.Printf("geocode cache disabled: %v", err)
        return ors
    }
    return geocode.NewRedisCache(ors, redis.NewClient(o), cfg.Geocode.CacheTTL)
}
