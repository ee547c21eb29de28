package store

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "techdispatch/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    jobs     map[string]map[string]model.Job        // tenant -> job id -> job
    techs    map[string]map[string]model.Technician // tenant -> technician id -> technician
    leaves   map[string][]model.Leave               // tenant -> leave
    closed   map[string][]model.ClosedDay           // tenant -> closed days
    jobTypes map[string]map[string]model.JobType    // tenant -> name -> job type
    checkIns map[string][]model.CheckIn             // tenant -> check-ins (append order)
    subs     map[string][]model.Subscription        // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    dlq                []memDLQ                // dead-lettered deliveries
    dispatchCfg        map[string]map[string]any // tenant -> config overrides
    evals              map[string][]model.EvaluationRecord // tenant -> history
}

func NewMemory() *Memory {
    return &Memory{
        jobs: map[string]map[string]model.Job{},
        techs: map[string]map[string]model.Technician{},
        leaves: map[string][]model.Leave{},
        closed: map[string][]model.ClosedDay{},
        jobTypes: map[string]map[string]model.JobType{},
        checkIns: map[string][]model.CheckIn{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dispatchCfg: map[string]map[string]any{},
        evals: map[string][]model.EvaluationRecord{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

type memDLQ struct {
    ID           string
    DeliveryID   string
    TenantID     string
    EventType    string
    URL          string
    Secret       string
    Payload      []byte
    Attempts     int
    LastError    string
    ResponseCode int
    LatencyMs    int
    CreatedAt    time.Time
}

// Snapshot reads

func (m *Memory) JobsForDate(ctx context.Context, tenantID, date string) ([]model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    date = model.NormalizeDate(date)
    out := []model.Job{}
    for _, j := range m.jobs[tenantID] {
        if model.NormalizeDate(j.ScheduledDate) == date { out = append(out, cloneJob(j)) }
    }
    sortJobs(out)
    return out, nil
}

func (m *Memory) UndatedUnassignedJobs(ctx context.Context, tenantID string) ([]model.Job, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Job{}
    for _, j := range m.jobs[tenantID] {
        if strings.TrimSpace(j.ScheduledDate) != "" || j.Assigned() { continue }
        if !isOpenStatus(j.Status) { continue }
        out = append(out, cloneJob(j))
    }
    sortJobs(out)
    return out, nil
}

func (m *Memory) ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.Technician, 0, len(m.techs[tenantID]))
    for _, t := range m.techs[tenantID] {
        t.Skills = append([]string(nil), t.Skills...)
        out = append(out, t)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (m *Memory) LeavesOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.Leave, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Leave{}
    for _, l := range m.leaves[tenantID] {
        if l.Start.Before(to) && l.End.After(from) { out = append(out, l) }
    }
    return out, nil
}

func (m *Memory) ClosedDaysOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.ClosedDay, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.ClosedDay{}
    for _, c := range m.closed[tenantID] {
        if c.Start.Before(to) && c.End.After(from) { out = append(out, c) }
    }
    return out, nil
}

func (m *Memory) ListJobTypes(ctx context.Context, tenantID string) ([]model.JobType, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.JobType{}
    for _, jt := range m.jobTypes[tenantID] { out = append(out, jt) }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out, nil
}

func (m *Memory) LatestCheckIns(ctx context.Context, tenantID string, before time.Time) ([]model.CheckIn, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    latest := map[string]model.CheckIn{}
    for _, c := range m.checkIns[tenantID] {
        if !c.At.Before(before) { continue }
        if cur, ok := latest[c.TechnicianID]; !ok || c.At.After(cur.At) { latest[c.TechnicianID] = c }
    }
    out := make([]model.CheckIn, 0, len(latest))
    for _, c := range latest { out = append(out, c) }
    sort.Slice(out, func(i, j int) bool { return out[i].TechnicianID < out[j].TechnicianID })
    return out, nil
}

// Seeding and field updates

func (m *Memory) UpsertJobs(ctx context.Context, tenantID string, jobs []model.Job) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.jobs[tenantID] == nil { m.jobs[tenantID] = map[string]model.Job{} }
    n := 0
    for _, j := range jobs {
        if j.ID == "" { return n, fmt.Errorf("job without id") }
        m.jobs[tenantID][j.ID] = cloneJob(j)
        n++
    }
    return n, nil
}

func (m *Memory) UpsertTechnicians(ctx context.Context, tenantID string, techs []model.Technician) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.techs[tenantID] == nil { m.techs[tenantID] = map[string]model.Technician{} }
    n := 0
    for _, t := range techs {
        if t.ID == "" { return n, fmt.Errorf("technician without id") }
        t.Skills = append([]string(nil), t.Skills...)
        m.techs[tenantID][t.ID] = t
        n++
    }
    return n, nil
}

func (m *Memory) AddLeaves(ctx context.Context, tenantID string, leaves []model.Leave) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.leaves[tenantID] = append(m.leaves[tenantID], leaves...)
    return nil
}

func (m *Memory) AddClosedDays(ctx context.Context, tenantID string, days []model.ClosedDay) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.closed[tenantID] = append(m.closed[tenantID], days...)
    return nil
}

func (m *Memory) UpsertJobTypes(ctx context.Context, tenantID string, types []model.JobType) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.jobTypes[tenantID] == nil { m.jobTypes[tenantID] = map[string]model.JobType{} }
    for _, jt := range types { m.jobTypes[tenantID][jt.Name] = jt }
    return nil
}

func (m *Memory) RecordCheckIn(ctx context.Context, tenantID string, c model.CheckIn) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if c.At.IsZero() { c.At = time.Now().UTC() }
    m.checkIns[tenantID] = append(m.checkIns[tenantID], c)
    return nil
}

func (m *Memory) UpdateJobLocation(ctx context.Context, tenantID, jobID string, p model.GeoPoint) error {
    m.mu.Lock(); defer m.mu.Unlock()
    j, ok := m.jobs[tenantID][jobID]
    if !ok { return ErrNotFound }
    lat, lng := p.Lat, p.Lng
    j.Lat, j.Lng = &lat, &lng
    m.jobs[tenantID][jobID] = j
    return nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription{}, list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    if len(out) == len(arr) { return ErrNotFound }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    dk := computeDedupKey(payload)
    for _, id := range m.deliveriesByTenant[tenantID] {
        d := m.deliveries[id]
        if d.EventType == eventType && d.URL == url && computeDedupKey(d.Payload) == dk { return d.ID, nil }
    }
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending, Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    due := []*memDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) { due = append(due, d) }
    }
    sort.SliceStable(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
    out := []WebhookDelivery{}
    for _, d := range due {
        if limit > 0 && len(out) >= limit { break }
        out = append(out, d.WebhookDelivery)
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = DeliveryDelivered
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = DeliveryRetry
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    m.dlq = append(m.dlq, memDLQ{
        ID: uuid.New().String(), DeliveryID: id, TenantID: d.TenantID, EventType: d.EventType, URL: d.URL, Secret: d.Secret,
        Payload: d.Payload, Attempts: d.Attempts+1, LastError: lastError, ResponseCode: responseCode, LatencyMs: latencyMs, CreatedAt: time.Now(),
    })
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 || limit > 500 { limit = 100 }
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids { if id == cursor { start = i + 1; break } }
    }
    out := []map[string]any{}
    next := ""
    for _, id := range ids[start:] {
        d := m.deliveries[id]
        if d == nil { continue }
        if status != "" && d.Status != status { continue }
        if len(out) == limit { next = out[len(out)-1]["id"].(string); break }
        item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
        if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
        if d.LastError != "" { item["lastError"] = d.LastError }
        if d.ResponseCode != 0 { item["responseCode"] = d.ResponseCode }
        out = append(out, item)
    }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = DeliveryPending
    d.NextAttemptAt = time.Now()
    return nil
}

// Dead-letter queue

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 || limit > 500 { limit = 100 }
    out := []map[string]any{}
    past := cursor == ""
    next := ""
    for _, e := range m.dlq {
        if e.TenantID != tenantID { continue }
        if !past { past = e.ID == cursor; continue }
        if len(out) == limit { next = out[len(out)-1]["id"].(string); break }
        out = append(out, map[string]any{"id": e.ID, "deliveryId": e.DeliveryID, "eventType": e.EventType, "url": e.URL, "lastError": e.LastError, "attempts": e.Attempts, "createdAt": e.CreatedAt, "responseCode": e.ResponseCode, "latencyMs": e.LatencyMs})
    }
    return out, next, nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    m.mu.Lock()
    idx := -1
    for i, e := range m.dlq { if e.ID == id && e.TenantID == tenantID { idx = i; break } }
    if idx < 0 { m.mu.Unlock(); return ErrNotFound }
    e := m.dlq[idx]
    m.dlq = append(m.dlq[:idx], m.dlq[idx+1:]...)
    d := m.deliveries[e.DeliveryID]
    if d != nil {
        d.Status = DeliveryPending
        d.Attempts = 0
        d.NextAttemptAt = time.Now()
        m.mu.Unlock()
        return nil
    }
    m.mu.Unlock()
    _, err := m.EnqueueWebhook(ctx, tenantID, "", e.EventType, e.URL, e.Secret, e.Payload)
    return err
}

// Engine tuning overrides

func (m *Memory) GetDispatchConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.dispatchCfg[tenantID]; ok { return cfg, nil }
    return nil, nil
}

func (m *Memory) SaveDispatchConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.dispatchCfg[tenantID] = cfg
    return nil
}

// Evaluation history

func (m *Memory) SaveEvaluation(ctx context.Context, rec model.EvaluationRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if rec.ID == "" { rec.ID = uuid.New().String() }
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now().UTC() }
    m.evals[rec.TenantID] = append(m.evals[rec.TenantID], rec)
    return nil
}

// ListEvaluations returns the newest records first.
func (m *Memory) ListEvaluations(ctx context.Context, tenantID, date string, limit int) ([]model.EvaluationRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 || limit > 500 { limit = 50 }
    all := m.evals[tenantID]
    out := []model.EvaluationRecord{}
    for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
        if date != "" && all[i].Date != date { continue }
        out = append(out, all[i])
    }
    return out, nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
    ids := []string{}
    for _, lst := range m.deliveriesByTenant {
        ids = append(ids, lst...)
    }
    return ids
}

func cloneJob(j model.Job) model.Job {
    j.AssignedTechnicians = append([]string(nil), j.AssignedTechnicians...)
    if j.Lat != nil { v := *j.Lat; j.Lat = &v }
    if j.Lng != nil { v := *j.Lng; j.Lng = &v }
    return j
}

func sortJobs(jobs []model.Job) {
    sort.Slice(jobs, func(a, b int) bool {
        if jobs[a].ScheduledTime != jobs[b].ScheduledTime { return jobs[a].ScheduledTime < jobs[b].ScheduledTime }
        return jobs[a].ID < jobs[b].ID
    })
}

func isOpenStatus(s string) bool {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case model.StatusCompleted, model.StatusCancelled:
        return false
    }
    return true
}
