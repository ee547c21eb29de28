package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"techdispatch/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestMemoryJobReads(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.UpsertJobs(ctx, "t1", []model.Job{
		{ID: "b", ScheduledDate: "2025-03-10T00:00:00Z", ScheduledTime: "10:00", AssignedTechnicians: []string{"a"}},
		{ID: "a", ScheduledDate: "2025-03-10", ScheduledTime: "09:00"},
		{ID: "c", ScheduledDate: "2025-03-11"},
		{ID: "u1"},
		{ID: "u2", AssignedTechnicians: []string{"a"}},
		{ID: "u3", Status: "Cancelled"},
	})
	if err != nil {
		t.Fatal(err)
	}
	m.UpsertJobs(ctx, "t2", []model.Job{{ID: "other", ScheduledDate: "2025-03-10"}})

	jobs, _ := m.JobsForDate(ctx, "t1", "2025-03-10")
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].ID != "b" {
		t.Fatalf("JobsForDate = %+v", jobs)
	}
	undated, _ := m.UndatedUnassignedJobs(ctx, "t1")
	if len(undated) != 1 || undated[0].ID != "u1" {
		t.Fatalf("UndatedUnassignedJobs = %+v", undated)
	}

	// returned jobs are copies
	jobs[1].AssignedTechnicians[0] = "mutated"
	again, _ := m.JobsForDate(ctx, "t1", "2025-03-10")
	if again[1].AssignedTechnicians[0] != "a" {
		t.Fatal("store state leaked through returned slice")
	}

	if err := m.UpdateJobLocation(ctx, "t1", "u1", model.GeoPoint{Lat: 1, Lng: 2}); err != nil {
		t.Fatal(err)
	}
	undated, _ = m.UndatedUnassignedJobs(ctx, "t1")
	if p, ok := undated[0].Point(); !ok || p.Lat != 1 {
		t.Fatalf("location not updated: %+v", undated[0])
	}
	if err := m.UpdateJobLocation(ctx, "t1", "missing", model.GeoPoint{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryRangesAndCheckIns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	m.AddLeaves(ctx, "t1", []model.Leave{
		{TechnicianID: "a", Start: day.Add(-48 * time.Hour), End: day.Add(-24 * time.Hour)},
		{TechnicianID: "a", Start: day.Add(12 * time.Hour), End: day.Add(14 * time.Hour)},
	})
	m.AddClosedDays(ctx, "t1", []model.ClosedDay{{Start: day, End: day.Add(24 * time.Hour), FullDay: true}})

	leaves, _ := m.LeavesOverlapping(ctx, "t1", day, day.Add(24*time.Hour))
	if len(leaves) != 1 {
		t.Fatalf("leaves = %d, want 1", len(leaves))
	}
	closed, _ := m.ClosedDaysOverlapping(ctx, "t1", day.Add(24*time.Hour), day.Add(48*time.Hour))
	if len(closed) != 0 {
		t.Fatalf("closed day touching the range boundary should not overlap")
	}

	m.RecordCheckIn(ctx, "t1", model.CheckIn{TechnicianID: "a", Lat: 1, At: day.Add(8 * time.Hour)})
	m.RecordCheckIn(ctx, "t1", model.CheckIn{TechnicianID: "a", Lat: 2, At: day.Add(9 * time.Hour)})
	m.RecordCheckIn(ctx, "t1", model.CheckIn{TechnicianID: "a", Lat: 3, At: day.Add(30 * time.Hour)})
	m.RecordCheckIn(ctx, "t1", model.CheckIn{TechnicianID: "b", Lat: 4, At: day.Add(7 * time.Hour)})
	cis, _ := m.LatestCheckIns(ctx, "t1", day.Add(24*time.Hour))
	if len(cis) != 2 || cis[0].Lat != 2 || cis[1].Lat != 4 {
		t.Fatalf("LatestCheckIns = %+v", cis)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s1, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://a", Events: []string{"dispatch.evaluated"}})
	m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://b", Events: []string{"dispatch.conflicts.high"}})

	subs, _ := m.GetSubscriptionsForEvent(ctx, "t1", "dispatch.evaluated")
	if len(subs) != 1 || subs[0].URL != "http://a" {
		t.Fatalf("subs = %+v", subs)
	}
	page, next, _ := m.ListSubscriptions(ctx, "t1", "", 1)
	if len(page) != 1 || next != s1.ID {
		t.Fatalf("page=%v next=%q", page, next)
	}
	if err := m.DeleteSubscription(ctx, "t1", s1.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, "t1", s1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestMemoryWebhookLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	payload := []byte(`{"id":"evt_1","type":"dispatch.evaluated"}`)
	id, _ := m.EnqueueWebhook(ctx, "t1", "s1", "dispatch.evaluated", "http://a", "sec", payload)
	dup, _ := m.EnqueueWebhook(ctx, "t1", "s1", "dispatch.evaluated", "http://a", "sec", payload)
	if dup != id {
		t.Fatalf("duplicate event enqueued twice")
	}

	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due = %+v", due)
	}
	next := time.Now().Add(time.Hour)
	m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 3)
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry scheduled in the future should not be due")
	}
	if err := m.RetryWebhookDelivery(ctx, "other", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant retry = %v", err)
	}
	m.RetryWebhookDelivery(ctx, "t1", id)
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("due after retry = %+v", due)
	}

	m.FailWebhookDelivery(ctx, id, "gone", 410, 2)
	items, _, _ := m.ListWebhookDeliveries(ctx, "t1", "failed", "", 10)
	if len(items) != 1 || items[0]["responseCode"] != 410 {
		t.Fatalf("failed deliveries = %+v", items)
	}
	dlq, _, _ := m.ListWebhookDLQ(ctx, "t1", "", 10)
	if len(dlq) != 1 || dlq[0]["attempts"] != 2 {
		t.Fatalf("dlq = %+v", dlq)
	}
	if other, _, _ := m.ListWebhookDLQ(ctx, "t2", "", 10); len(other) != 0 {
		t.Fatalf("dlq leaked across tenants")
	}

	if err := m.RequeueWebhookDLQ(ctx, "t1", dlq[0]["id"].(string)); err != nil {
		t.Fatal(err)
	}
	if dlq, _, _ := m.ListWebhookDLQ(ctx, "t1", "", 10); len(dlq) != 0 {
		t.Fatalf("dlq not drained")
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].Attempts != 0 || due[0].Status != DeliveryPending {
		t.Fatalf("requeued = %+v", due)
	}
}

func TestMemoryEvaluationHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		m.SaveEvaluation(ctx, model.EvaluationRecord{TenantID: "t1", Date: "2025-03-10", DurationMs: i})
	}
	m.SaveEvaluation(ctx, model.EvaluationRecord{TenantID: "t1", Date: "2025-03-11"})

	recs, _ := m.ListEvaluations(ctx, "t1", "2025-03-10", 2)
	if len(recs) != 2 || recs[0].DurationMs != 2 || recs[0].ID == "" {
		t.Fatalf("history = %+v", recs)
	}
	all, _ := m.ListEvaluations(ctx, "t1", "", 0)
	if len(all) != 4 {
		t.Fatalf("all = %d", len(all))
	}
}

func TestMemoryDispatchConfig(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if cfg, err := m.GetDispatchConfig(ctx, "t1"); cfg != nil || err != nil {
		t.Fatalf("empty config = %v, %v", cfg, err)
	}
	m.SaveDispatchConfig(ctx, "t1", map[string]any{"autoDispatchThreshold": 80})
	cfg, _ := m.GetDispatchConfig(ctx, "t1")
	if cfg["autoDispatchThreshold"] != 80 {
		t.Fatalf("cfg = %v", cfg)
	}
}
