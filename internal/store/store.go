package store

import (
    "context"
    "errors"
    "time"

    "techdispatch/internal/model"
)

// Store is the persistence interface used by the API server. The dispatch engine
// never writes through it; evaluations only read snapshots.
type Store interface {
    // Snapshot reads
    JobsForDate(ctx context.Context, tenantID, date string) ([]model.Job, error)
    UndatedUnassignedJobs(ctx context.Context, tenantID string) ([]model.Job, error)
    ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error)
    LeavesOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.Leave, error)
    ClosedDaysOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]model.ClosedDay, error)
    ListJobTypes(ctx context.Context, tenantID string) ([]model.JobType, error)
    // LatestCheckIns returns each technician's newest check-in strictly before the given instant.
    LatestCheckIns(ctx context.Context, tenantID string, before time.Time) ([]model.CheckIn, error)

    // Seeding and field updates
    UpsertJobs(ctx context.Context, tenantID string, jobs []model.Job) (int, error)
    UpsertTechnicians(ctx context.Context, tenantID string, techs []model.Technician) (int, error)
    AddLeaves(ctx context.Context, tenantID string, leaves []model.Leave) error
    AddClosedDays(ctx context.Context, tenantID string, days []model.ClosedDay) error
    UpsertJobTypes(ctx context.Context, tenantID string, types []model.JobType) error
    RecordCheckIn(ctx context.Context, tenantID string, c model.CheckIn) error
    UpdateJobLocation(ctx context.Context, tenantID, jobID string, p model.GeoPoint) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

    // Dead-letter queue
    ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error)
    RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error

    // Engine tuning overrides per tenant
    GetDispatchConfig(ctx context.Context, tenantID string) (map[string]any, error)
    SaveDispatchConfig(ctx context.Context, tenantID string, cfg map[string]any) error

    // Evaluation history
    SaveEvaluation(ctx context.Context, rec model.EvaluationRecord) error
    ListEvaluations(ctx context.Context, tenantID, date string, limit int) ([]model.EvaluationRecord, error)
}

var ErrNotFound = errors.New("not found")
