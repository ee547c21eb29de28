package api

import (
    "context"
    "log"
    "net/http"
    "strings"

    redis "github.com/redis/go-redis/v9"

    "techdispatch/internal/auth"
    "techdispatch/internal/config"
    "techdispatch/internal/geocode"
    "techdispatch/internal/opt"
    "techdispatch/internal/store"
    "techdispatch/internal/webhooks"
)

type Server struct {
    Store    store.Store
    Engine   *opt.Engine
    Geocoder geocode.Geocoder
    Pub      *webhooks.Publisher
    Auth     *auth.Verifier
    Broker   EventBroker
    Limiter  *TenantLimiter
    Config   config.Config
}

type Option func(*Server)

// WithStore replaces the store chosen from DATABASE_URL.
func WithStore(st store.Store) Option { return func(s *Server) { s.Store = st } }

func WithBroker(b EventBroker) Option { return func(s *Server) { s.Broker = b } }

func WithGeocoder(g geocode.Geocoder) Option { return func(s *Server) { s.Geocoder = g } }

func WithSummarizer(sum opt.Summarizer) Option { return func(s *Server) { s.Engine.Summarizer = sum } }

// NewServer wires the API dependencies. Without DATABASE_URL the in-memory store is
// used; without REDIS_URL events fan out in-process only.
func NewServer(cfg config.Config, engineCfg opt.Config, opts ...Option) (*Server, error) {
    s := &Server{
        Engine: opt.NewEngine(engineCfg, nil),
        Auth:   auth.NewVerifierFromEnv(),
        Config: cfg,
    }
    if cfg.RateRPS > 0 {
        s.Limiter = NewTenantLimiter(cfg.RateRPS, cfg.RateBurst)
    }
    for _, o := range opts {
        o(s)
    }
    if s.Store == nil {
        if cfg.DatabaseURL == "" {
            s.Store = store.NewMemory()
        } else {
            sp, err := store.NewPostgres(cfg.DatabaseURL)
            if err != nil {
                return nil, err
            }
            if cfg.DBMigrate {
                if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
                    sp.Close()
                    return nil, err
                }
            }
            s.Store = sp
        }
    }
    if s.Broker == nil {
        s.Broker = NewBroker()
        if cfg.RedisURL != "" {
            o, err := redis.ParseURL(cfg.RedisURL)
            if err != nil {
                log.Printf("op=api.broker redis_url invalid, using in-process broker err=%v", err)
            } else {
                s.Broker = NewRedisBroker(redis.NewClient(o))
            }
        }
    }
    s.Pub = webhooks.NewPublisher(s.Store)
    return s, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    tenant := s.getPrincipal(r).Tenant
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// normalizeTenantID trims tenant ids so header and token forms agree.
func (s *Server) normalizeTenantID(t string) string {
    t = strings.TrimSpace(t)
    if t == "" {
        return defaultTenant
    }
    return t
}

const defaultTenant = "t_demo"

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}

// engineFor returns the engine tuned with the tenant's stored overrides. Bad
// overrides are logged and the base tuning is used.
func (s *Server) engineFor(ctx context.Context, tenant string) *opt.Engine {
    overrides, err := s.Store.GetDispatchConfig(ctx, tenant)
    if err != nil {
        log.Printf("op=api.engineFor tenant=%s err=%v", tenant, err)
        return s.Engine
    }
    if len(overrides) == 0 {
        return s.Engine
    }
    cfg, err := config.ApplyOverrides(s.Engine.Config, overrides)
    if err != nil {
        log.Printf("op=api.engineFor tenant=%s overrides ignored err=%v", tenant, err)
        return s.Engine
    }
    return opt.NewEngine(cfg, s.Engine.Summarizer)
}
