package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"techdispatch/internal/config"
	"techdispatch/internal/geocode"
	"techdispatch/internal/metrics"
	"techdispatch/internal/model"
	"techdispatch/internal/obs"
	"techdispatch/internal/opt"
	"techdispatch/internal/store"
	"techdispatch/internal/webhooks"
)

// EvaluateHandler handles POST/GET /v1/dispatch/evaluate.
//
// POST evaluates the snapshot in the body as-is. GET loads the tenant's snapshot for
// ?date=, geocodes jobs missing coordinates, evaluates, and publishes the result to
// stream subscribers, webhooks and the evaluation history.
func (s *Server) EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.evaluateBody(w, r)
	case http.MethodGet:
		s.evaluateStored(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) evaluateBody(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	p := s.getPrincipal(r)
	if !p.CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var snap model.Snapshot
	if err := decodeBody(w, r, &snap); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSnapshot(&snap); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid snapshot", err.Error(), r.URL.Path)
		return
	}
	ev, err := s.evaluate(ctx, tenant, snap, "body")
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Evaluation failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) evaluateStored(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	p := s.getPrincipal(r)
	date := r.URL.Query().Get("date")
	techID := strings.TrimSpace(r.URL.Query().Get("technicianId"))
	if !validDate(date) {
		writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD", r.URL.Path)
		return
	}
	if !canViewTechnician(p, techID) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher, admin or the technician themself required", r.URL.Path)
		return
	}

	snap, err := store.LoadSnapshot(ctx, s.Store, tenant, date)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load snapshot failed", err.Error(), r.URL.Path)
		return
	}
	snap.Jobs = s.geocodeJobs(ctx, tenant, snap.Jobs)

	start := time.Now()
	ev, err := s.evaluate(ctx, tenant, snap, "store")
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Evaluation failed", err.Error(), r.URL.Path)
		return
	}
	s.publishEvaluation(ctx, tenant, ev)

	out := ev
	if techID != "" {
		out = opt.ForTechnician(ev, strings.ToLower(techID))
	}
	rec := model.EvaluationRecord{
		ID:            uuid.NewString(),
		TenantID:      tenant,
		Date:          ev.Date,
		TechnicianID:  techID,
		Stats:         ev.Stats,
		HighConflicts: len(webhooks.HighConflicts(ev.Conflicts)),
		DurationMs:    int(time.Since(start).Milliseconds()),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Store.SaveEvaluation(ctx, rec); err != nil {
		log.Printf("req_id=%s op=api.saveEvaluation tenant=%s date=%s err=%v", obs.RequestID(ctx), tenant, date, err)
	}
	writeJSON(w, http.StatusOK, out)
}

// evaluate runs the tenant-tuned engine and records metrics. A panic inside the
// engine is turned into an error so one bad snapshot cannot take the process down.
func (s *Server) evaluate(ctx context.Context, tenant string, snap model.Snapshot, source string) (ev model.Evaluation, err error) {
	defer obs.Time(ctx, "dispatch.evaluate")(&err)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluate %s: panic: %v", snap.Date, rec)
		}
	}()
	eng := s.engineFor(ctx, tenant)
	start := time.Now()
	ev = eng.Evaluate(ctx, snap)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	metrics.Evaluations.WithLabelValues(source).Inc()
	for _, c := range ev.Conflicts {
		metrics.Conflicts.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
	}
	metrics.AutoDispatchReady.Set(float64(ev.Stats.AutoDispatchReady))
	return ev, nil
}

// geocodeJobs fills missing job coordinates and writes new ones back so later
// evaluations skip the lookup.
func (s *Server) geocodeJobs(ctx context.Context, tenant string, jobs []model.Job) []model.Job {
	if s.Geocoder == nil {
		return jobs
	}
	out, filled := geocode.FillJobs(ctx, s.Geocoder, jobs)
	if filled == 0 {
		return out
	}
	for i := range out {
		if _, had := jobs[i].Point(); had {
			continue
		}
		p, ok := out[i].Point()
		if !ok {
			continue
		}
		if err := s.Store.UpdateJobLocation(ctx, tenant, out[i].ID, p); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("req_id=%s op=api.updateJobLocation job=%s err=%v", obs.RequestID(ctx), out[i].ID, err)
		}
	}
	return out
}

func (s *Server) publishEvaluation(ctx context.Context, tenant string, ev model.Evaluation) {
	key := streamKey(tenant, ev.Date)
	s.Broker.Publish(key, SSEEvent{Type: EventEvaluated, Data: map[string]any{
		"date":    ev.Date,
		"stats":   ev.Stats,
		"summary": ev.Summary,
	}})
	for _, c := range ev.Conflicts {
		s.Broker.Publish(key, SSEEvent{Type: EventConflictDetected, Data: map[string]any{
			"id":            c.ID,
			"type":          c.Type,
			"severity":      c.Severity,
			"technicianIds": c.TechnicianIDs,
			"jobIds":        c.JobIDs,
			"message":       c.Message,
		}})
	}
	if s.Pub != nil {
		s.Pub.EmitEvaluation(ctx, tenant, ev)
	}
}

// DispatchConfigHandler returns the effective engine tuning for the caller's tenant.
func (s *Server) DispatchConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/dispatch/config" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	overrides, err := s.Store.GetDispatchConfig(ctx, tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
		return
	}
	if overrides == nil {
		overrides = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults":  s.Engine.Config,
		"overrides": overrides,
		"effective": s.engineFor(ctx, tenant).Config,
	})
}

// AdminDispatchConfigHandler reads or replaces the tenant's engine overrides.
func (s *Server) AdminDispatchConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/dispatch/config" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !isAdmin(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetDispatchConfig(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
			return
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.Config == nil {
			writeProblem(w, http.StatusBadRequest, "Missing config", "", r.URL.Path)
			return
		}
		if _, err := config.ApplyOverrides(s.Engine.Config, body.Config); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveDispatchConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// HistoryHandler handles GET /v1/dispatch/history?date=&limit=
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	date := r.URL.Query().Get("date")
	if date != "" && !validDate(date) {
		writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD", r.URL.Path)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}
	items, err := s.Store.ListEvaluations(r.Context(), p.Tenant, date, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List history failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// StreamHandler handles GET /v1/dispatch/stream?date= as Server-Sent Events.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	date := r.URL.Query().Get("date")
	if !validDate(date) {
		writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	key := streamKey(p.Tenant, date)
	ch := s.Broker.Subscribe(key)
	defer s.Broker.Unsubscribe(key, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"date\":\"%s\",\"ts\":\"%s\"}\n\n", date, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// CheckInsHandler handles POST /v1/technicians/checkins. Technicians may only
// report their own position.
func (s *Server) CheckInsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	p := s.getPrincipal(r)
	var c model.CheckIn
	if err := decodeBody(w, r, &c); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if c.TechnicianID == "" && p.TechnicianID != "" {
		c.TechnicianID = p.TechnicianID
	}
	if err := validateCheckIn(c); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid check-in", err.Error(), r.URL.Path)
		return
	}
	if !canViewTechnician(p, c.TechnicianID) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "technicians may only check in as themselves", r.URL.Path)
		return
	}
	c.TechnicianID = strings.ToLower(strings.TrimSpace(c.TechnicianID))
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	if err := s.Store.RecordCheckIn(ctx, tenant, c); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Record check-in failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, c)
}
