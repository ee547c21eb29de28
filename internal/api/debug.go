package api

import (
    "net/http"
    "os"
    "time"

    "techdispatch/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    c := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":                 c.Port,
            "AUTH_MODE":            os.Getenv("AUTH_MODE"),
            "RATE_RPS":             c.RateRPS,
            "RATE_BURST":           c.RateBurst,
            "WEBHOOK_MAX_ATTEMPTS": c.WebhookMaxAttempts,
            "SUMMARY_MODE":         c.Summary.Mode,
            "DISPATCH_CONFIG":      c.DispatchConfigPath,
            "HAS_DATABASE_URL":     c.DatabaseURL != "",
            "HAS_REDIS_URL":        c.RedisURL != "",
            "GEOCODER_ENABLED":     s.Geocoder != nil,
        },
    }
    writeJSON(w, http.StatusOK, info)
}
