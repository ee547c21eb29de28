package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "techdispatch/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(10)
    db.SetMaxIdleConns(10)
    db.SetConnMaxLifetime(30 * time.Minute)
    if err := db.Ping(); err != nil {
        db.Close()
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Snapshot reads

const jobColumns = `id, COALESCE(number,''), COALESCE(customer_name,''), COALESCE(address,''), lat, lng,
    COALESCE(job_type,''), COALESCE(product,''), COALESCE(scheduled_date,''), COALESCE(scheduled_time,''),
    duration_hours, assigned_technicians, status`

func (p *Postgres) JobsForDate(ctx context.Context, tenantID, date string) ([]model.Job, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE tenant_id=$1 AND scheduled_date=$2 ORDER BY scheduled_time NULLS LAST, id`, tenantID, model.NormalizeDate(date))
    if err != nil { return nil, fmt.Errorf("jobs for date: %w", err) }
    return scanJobs(rows)
}

func (p *Postgres) UndatedUnassignedJobs(ctx context.Context, tenantID string) ([]model.Job, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
        WHERE tenant_id=$1 AND scheduled_date IS NULL AND jsonb_array_length(assigned_technicians)=0
          AND lower(status) NOT IN ('completed','cancelled') ORDER BY id`, tenantID)
    if err != nil { return nil, fmt.Errorf("undated jobs: %w", err) }
    return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]model.Job, error) {
    defer rows.Close()
    out := []model.Job{}
    for rows.Next() {
        var j model.Job
        var lat, lng sql.NullFloat64
        var assigned []byte
        if err := rows.Scan(&j.ID, &j.Number, &j.CustomerName, &j.Address, &lat, &lng, &j.JobType, &j.Product,
            &j.ScheduledDate, &j.ScheduledTime, &j.DurationHours, &assigned, &j.Status); err != nil { return nil, err }
        if lat.Valid && lng.Valid { j.Lat, j.Lng = &lat.Float64, &lng.Float64 }
        if err := json.Unmarshal(assigned, &j.AssignedTechnicians); err != nil { return nil, fmt.Errorf("job %s assigned_technicians: %w", j.ID, err) }
        out = append(out, j)
    }
    return out, rows.Err()
}

func (p *Postgres) ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id, COALESCE(name,''), skills, home_lat, home_lng, max_jobs_per_day FROM technicians WHERE tenant_id=$1 ORDER BY id`, tenantID)
    if err != nil { return nil, fmt.Errorf("list technicians: %w", err) }
    defer rows.Close()
    out := []model.Technician{}
    for rows.Next() {
        var t model.Technician
        var skills []byte
        var lat, lng sql.NullFloat64
        if err := rows.Scan(&t.ID, &t.Name, &skills, &lat, &lng, &t.MaxJobsPerDay); err != nil { return nil, err }
        if lat.Valid && lng.Valid { t.HomeLat, t.HomeLng = &lat.Float64, &lng.Float64 }
        if err := json.Unmarshal(skills, &t.Skills); err != nil { return nil, fmt.Errorf("technician %s skills: %w", t.ID, err) }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (p *Postgres) LeavesOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.Leave, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT technician_id, starts_at, ends_at, COALESCE(reason,'') FROM technician_leave
        WHERE tenant_id=$1 AND starts_at < $3 AND ends_at > $2 ORDER BY starts_at`, tenantID, from, to)
    if err != nil { return nil, fmt.Errorf("leaves: %w", err) }
    defer rows.Close()
    out := []model.Leave{}
    for rows.Next() {
        var l model.Leave
        if err := rows.Scan(&l.TechnicianID, &l.Start, &l.End, &l.Reason); err != nil { return nil, err }
        l.Start, l.End = l.Start.UTC(), l.End.UTC()
        out = append(out, l)
    }
    return out, rows.Err()
}

func (p *Postgres) ClosedDaysOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.ClosedDay, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT starts_at, ends_at, full_day, COALESCE(reason,'') FROM closed_days
        WHERE tenant_id=$1 AND starts_at < $3 AND ends_at > $2 ORDER BY starts_at`, tenantID, from, to)
    if err != nil { return nil, fmt.Errorf("closed days: %w", err) }
    defer rows.Close()
    out := []model.ClosedDay{}
    for rows.Next() {
        var c model.ClosedDay
        if err := rows.Scan(&c.Start, &c.End, &c.FullDay, &c.Reason); err != nil { return nil, err }
        c.Start, c.End = c.Start.UTC(), c.End.UTC()
        out = append(out, c)
    }
    return out, rows.Err()
}

func (p *Postgres) ListJobTypes(ctx context.Context, tenantID string) ([]model.JobType, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT name, default_duration_hours FROM job_types WHERE tenant_id=$1 ORDER BY name`, tenantID)
    if err != nil { return nil, fmt.Errorf("job types: %w", err) }
    defer rows.Close()
    out := []model.JobType{}
    for rows.Next() {
        var jt model.JobType
        if err := rows.Scan(&jt.Name, &jt.DefaultDurationHours); err != nil { return nil, err }
        out = append(out, jt)
    }
    return out, rows.Err()
}

func (p *Postgres) LatestCheckIns(ctx context.Context, tenantID string, before time.Time) ([]model.CheckIn, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT ON (technician_id) technician_id, lat, lng, at FROM technician_checkins
        WHERE tenant_id=$1 AND at < $2 ORDER BY technician_id, at DESC`, tenantID, before)
    if err != nil { return nil, fmt.Errorf("check-ins: %w", err) }
    defer rows.Close()
    out := []model.CheckIn{}
    for rows.Next() {
        var c model.CheckIn
        if err := rows.Scan(&c.TechnicianID, &c.Lat, &c.Lng, &c.At); err != nil { return nil, err }
        c.At = c.At.UTC()
        out = append(out, c)
    }
    return out, rows.Err()
}

// Seeding and field updates

func (p *Postgres) UpsertJobs(ctx context.Context, tenantID string, jobs []model.Job) (int, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return 0, err }
    defer func(){ _ = tx.Rollback() }()
    n := 0
    for _, j := range jobs {
        if j.ID == "" { return 0, errors.New("job without id") }
        assigned, _ := json.Marshal(nonNil(j.AssignedTechnicians))
        _, err := tx.ExecContext(ctx, `INSERT INTO jobs (tenant_id, id, number, customer_name, address, lat, lng, job_type, product, scheduled_date, scheduled_time, duration_hours, assigned_technicians, status)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
            ON CONFLICT (tenant_id, id) DO UPDATE SET number=EXCLUDED.number, customer_name=EXCLUDED.customer_name, address=EXCLUDED.address,
              lat=EXCLUDED.lat, lng=EXCLUDED.lng, job_type=EXCLUDED.job_type, product=EXCLUDED.product, scheduled_date=EXCLUDED.scheduled_date,
              scheduled_time=EXCLUDED.scheduled_time, duration_hours=EXCLUDED.duration_hours, assigned_technicians=EXCLUDED.assigned_technicians,
              status=EXCLUDED.status, updated_at=now()`,
            tenantID, j.ID, nullIfEmpty(j.Number), nullIfEmpty(j.CustomerName), nullIfEmpty(j.Address), floatOrNil(j.Lat), floatOrNil(j.Lng),
            nullIfEmpty(j.JobType), nullIfEmpty(j.Product), nullIfEmpty(model.NormalizeDate(j.ScheduledDate)), nullIfEmpty(j.ScheduledTime),
            j.DurationHours, assigned, statusOrOpen(j.Status))
        if err != nil { return 0, fmt.Errorf("upsert job %s: %w", j.ID, err) }
        n++
    }
    return n, tx.Commit()
}

func (p *Postgres) UpsertTechnicians(ctx context.Context, tenantID string, techs []model.Technician) (int, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return 0, err }
    defer func(){ _ = tx.Rollback() }()
    n := 0
    for _, t := range techs {
        if t.ID == "" { return 0, errors.New("technician without id") }
        skills, _ := json.Marshal(nonNil(t.Skills))
        maxJobs := t.MaxJobsPerDay
        if maxJobs <= 0 { maxJobs = 6 }
        _, err := tx.ExecContext(ctx, `INSERT INTO technicians (tenant_id, id, name, skills, home_lat, home_lng, max_jobs_per_day) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (tenant_id, id) DO UPDATE SET name=EXCLUDED.name, skills=EXCLUDED.skills, home_lat=EXCLUDED.home_lat,
              home_lng=EXCLUDED.home_lng, max_jobs_per_day=EXCLUDED.max_jobs_per_day, updated_at=now()`,
            tenantID, t.ID, nullIfEmpty(t.Name), skills, floatOrNil(t.HomeLat), floatOrNil(t.HomeLng), maxJobs)
        if err != nil { return 0, fmt.Errorf("upsert technician %s: %w", t.ID, err) }
        n++
    }
    return n, tx.Commit()
}

func (p *Postgres) AddLeaves(ctx context.Context, tenantID string, leaves []model.Leave) error {
    for _, l := range leaves {
        if _, err := p.db.ExecContext(ctx, `INSERT INTO technician_leave (tenant_id, technician_id, starts_at, ends_at, reason) VALUES ($1,$2,$3,$4,$5)`,
            tenantID, l.TechnicianID, l.Start, l.End, nullIfEmpty(l.Reason)); err != nil { return fmt.Errorf("add leave: %w", err) }
    }
    return nil
}

func (p *Postgres) AddClosedDays(ctx context.Context, tenantID string, days []model.ClosedDay) error {
    for _, c := range days {
        if _, err := p.db.ExecContext(ctx, `INSERT INTO closed_days (tenant_id, starts_at, ends_at, full_day, reason) VALUES ($1,$2,$3,$4,$5)`,
            tenantID, c.Start, c.End, c.FullDay, nullIfEmpty(c.Reason)); err != nil { return fmt.Errorf("add closed day: %w", err) }
    }
    return nil
}

func (p *Postgres) UpsertJobTypes(ctx context.Context, tenantID string, types []model.JobType) error {
    for _, jt := range types {
        if _, err := p.db.ExecContext(ctx, `INSERT INTO job_types (tenant_id, name, default_duration_hours) VALUES ($1,$2,$3)
            ON CONFLICT (tenant_id, name) DO UPDATE SET default_duration_hours=EXCLUDED.default_duration_hours`,
            tenantID, jt.Name, jt.DefaultDurationHours); err != nil { return fmt.Errorf("upsert job type: %w", err) }
    }
    return nil
}

func (p *Postgres) RecordCheckIn(ctx context.Context, tenantID string, c model.CheckIn) error {
    at := c.At
    if at.IsZero() { at = time.Now().UTC() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO technician_checkins (tenant_id, technician_id, lat, lng, at) VALUES ($1,$2,$3,$4,$5)`, tenantID, c.TechnicianID, c.Lat, c.Lng, at)
    return err
}

func (p *Postgres) UpdateJobLocation(ctx context.Context, tenantID, jobID string, pt model.GeoPoint) error {
    res, err := p.db.ExecContext(ctx, `UPDATE jobs SET lat=$3, lng=$4, updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, jobID, pt.Lat, pt.Lng)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    filter, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, string(filter))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Subscription{}
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`, nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

// FailWebhookDelivery marks the delivery failed and copies it to the DLQ in one transaction.
func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil { return err }
    if _, err := tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error, response_code, latency_ms)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2, $3, $4 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil { return err }
    return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url, COALESCE(response_code,0) FROM webhook_deliveries WHERE tenant_id=$1`
    args := []any{tenantID}
    if status != "" { args = append(args, status); q += fmt.Sprintf(` AND status=$%d`, len(args)) }
    if cursor != "" { args = append(args, cursor); q += fmt.Sprintf(` AND id::text > $%d`, len(args)) }
    args = append(args, limit)
    q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts, code int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url, &code); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        if code != 0 { m["responseCode"] = code }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Dead-letter queue

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, COALESCE(delivery_id::text,''), event_type, url, COALESCE(last_error,''), attempts, created_at, COALESCE(response_code,0), COALESCE(latency_ms,0) FROM webhook_dlq WHERE tenant_id=$1`
    args := []any{tenantID}
    if cursor != "" { args = append(args, cursor); q += fmt.Sprintf(` AND id::text > $%d`, len(args)) }
    args = append(args, limit)
    q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts, code, latency int
        var created time.Time
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created, &code, &latency); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created, "responseCode": code, "latencyMs": latency})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

// RequeueWebhookDLQ resets the original delivery to pending and drops the DLQ entry.
func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    var delID string
    err = tx.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,'') FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id).Scan(&delID)
    if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
    if err != nil { return err }
    if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', attempts=0, next_attempt_at=now(), updated_at=now() WHERE id::text=$1`, delID); err != nil { return err }
    if _, err := tx.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id); err != nil { return err }
    return tx.Commit()
}

// Engine tuning overrides

func (p *Postgres) GetDispatchConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM dispatch_config WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SaveDispatchConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    js, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO dispatch_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=EXCLUDED.config, updated_at=now()`, tenantID, js)
    return err
}

// Evaluation history

func (p *Postgres) SaveEvaluation(ctx context.Context, rec model.EvaluationRecord) error {
    if rec.ID == "" { rec.ID = uuid.New().String() }
    if rec.CreatedAt.IsZero() { rec.CreatedAt = time.Now().UTC() }
    stats, err := json.Marshal(rec.Stats)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO dispatch_evaluations (id, tenant_id, date, technician_id, stats, high_conflicts, duration_ms, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
        rec.ID, rec.TenantID, rec.Date, nullIfEmpty(rec.TechnicianID), stats, rec.HighConflicts, rec.DurationMs, rec.CreatedAt)
    return err
}

func (p *Postgres) ListEvaluations(ctx context.Context, tenantID, date string, limit int) ([]model.EvaluationRecord, error) {
    if limit <= 0 || limit > 500 { limit = 50 }
    q := `SELECT id::text, date, COALESCE(technician_id,''), stats, high_conflicts, duration_ms, created_at FROM dispatch_evaluations WHERE tenant_id=$1`
    args := []any{tenantID}
    if date != "" { args = append(args, date); q += fmt.Sprintf(` AND date=$%d`, len(args)) }
    args = append(args, limit)
    q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.EvaluationRecord{}
    for rows.Next() {
        rec := model.EvaluationRecord{TenantID: tenantID}
        var stats []byte
        if err := rows.Scan(&rec.ID, &rec.Date, &rec.TechnicianID, &stats, &rec.HighConflicts, &rec.DurationMs, &rec.CreatedAt); err != nil { return nil, err }
        if err := json.Unmarshal(stats, &rec.Stats); err != nil { return nil, err }
        out = append(out, rec)
    }
    return out, rows.Err()
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

// Helpers
func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func floatOrNil(v *float64) any { if v == nil { return nil }; return *v }

func statusOrOpen(s string) string { if s == "" { return model.StatusOpen }; return s }

// nonNil keeps jsonb array columns as [] instead of null
func nonNil(v []string) []string {
    if v == nil { return []string{} }
    return v
}
