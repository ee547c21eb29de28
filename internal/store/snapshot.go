package store

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "time"

    "golang.org/x/sync/errgroup"

    "techdispatch/internal/model"
    "techdispatch/internal/obs"
)

// LoadSnapshot gathers everything the engine needs for one tenant and date.
// The reads are independent and run concurrently; the first failure cancels
// the rest and no partial snapshot is returned.
func LoadSnapshot(ctx context.Context, s Store, tenantID, date string) (_ model.Snapshot, err error) {
    defer obs.Time(ctx, "store.LoadSnapshot")(&err)

    date = model.NormalizeDate(date)
    day, err := time.Parse("2006-01-02", date)
    if err != nil {
        return model.Snapshot{}, fmt.Errorf("load snapshot: bad date %q: %w", date, err)
    }
    from, to := day, day.Add(24*time.Hour)

    var (
        dated, undated []model.Job
        techs          []model.Technician
        leaves         []model.Leave
        closed         []model.ClosedDay
        jobTypes       []model.JobType
        checkIns       []model.CheckIn
    )
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() (err error) { dated, err = s.JobsForDate(gctx, tenantID, date); return })
    g.Go(func() (err error) { undated, err = s.UndatedUnassignedJobs(gctx, tenantID); return })
    g.Go(func() (err error) { techs, err = s.ListTechnicians(gctx, tenantID); return })
    g.Go(func() (err error) { leaves, err = s.LeavesOverlapping(gctx, tenantID, from, to); return })
    g.Go(func() (err error) { closed, err = s.ClosedDaysOverlapping(gctx, tenantID, from, to); return })
    g.Go(func() (err error) { jobTypes, err = s.ListJobTypes(gctx, tenantID); return })
    g.Go(func() (err error) { checkIns, err = s.LatestCheckIns(gctx, tenantID, to); return })
    if err := g.Wait(); err != nil {
        return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
    }

    jobs := make([]model.Job, 0, len(dated)+len(undated))
    jobs = append(jobs, dated...)
    jobs = append(jobs, undated...)
    return model.Snapshot{
        Date:        date,
        Jobs:        jobs,
        Technicians: techs,
        Leaves:      leaves,
        ClosedDays:  closed,
        JobTypes:    jobTypes,
        CheckIns:    checkIns,
    }, nil
}

// Seed writes a snapshot's records for a tenant. Used for demos and the
// in-memory store at startup.
func Seed(ctx context.Context, s Store, tenantID string, snap model.Snapshot) error {
    if _, err := s.UpsertTechnicians(ctx, tenantID, snap.Technicians); err != nil { return fmt.Errorf("seed technicians: %w", err) }
    if _, err := s.UpsertJobs(ctx, tenantID, snap.Jobs); err != nil { return fmt.Errorf("seed jobs: %w", err) }
    if err := s.AddLeaves(ctx, tenantID, snap.Leaves); err != nil { return fmt.Errorf("seed leaves: %w", err) }
    if err := s.AddClosedDays(ctx, tenantID, snap.ClosedDays); err != nil { return fmt.Errorf("seed closed days: %w", err) }
    if err := s.UpsertJobTypes(ctx, tenantID, snap.JobTypes); err != nil { return fmt.Errorf("seed job types: %w", err) }
    for _, c := range snap.CheckIns {
        if err := s.RecordCheckIn(ctx, tenantID, c); err != nil { return fmt.Errorf("seed check-ins: %w", err) }
    }
    return nil
}

// SeedFile reads a snapshot JSON file and seeds it for the tenant.
func SeedFile(ctx context.Context, s Store, tenantID, path string) error {
    b, err := os.ReadFile(path)
    if err != nil { return err }
    var snap model.Snapshot
    if err := json.Unmarshal(b, &snap); err != nil { return fmt.Errorf("parse seed file %s: %w", path, err) }
    return Seed(ctx, s, tenantID, snap)
}
