package opt

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"techdispatch/internal/model"
)

// Evaluate runs the whole dispatch analysis for one snapshot. It never fails:
// missing data degrades individual scores instead of aborting.
func Evaluate(cfg Config, snap model.Snapshot) model.Evaluation {
	s := snap.Canonicalize()
	day := NewDay(s)

	conflicts := DetectConflicts(cfg, s.Technicians, day)

	routes := []model.Route{}
	for _, t := range s.Technicians {
		mine := timed(day.JobsFor(t.ID))
		if len(mine) == 0 {
			continue
		}
		jobs := make([]model.Job, 0, len(mine))
		for _, tj := range mine {
			jobs = append(jobs, tj.Job)
		}
		start, source := RouteStart(cfg, t, s.CheckIns)
		routes = append(routes, OptimizeRoute(cfg, t, jobs, start, source))
	}

	unassigned := UnassignedJobs(day)
	assignments, recs := PlanAssignments(cfg, unassigned, s.Technicians, day)
	assigned := AssignedJobs(day)
	reassignments := AnalyzeReassignments(cfg, assigned, s.Technicians, day)

	return model.Evaluation{
		Date:                        s.Date,
		Conflicts:                   conflicts,
		AssignmentSuggestions:       assignments,
		ReassignmentSuggestions:     reassignments,
		AutoDispatchRecommendations: recs,
		OptimizedRoutes:             routes,
		Stats: model.Stats{
			TotalTechnicians:          len(s.Technicians),
			ScheduledJobs:             len(assigned),
			UnassignedJobs:            len(unassigned),
			ConflictsDetected:         len(conflicts),
			ReassignmentOpportunities: len(reassignments),
			AutoDispatchReady:         len(recs),
		},
	}
}

// Summarizer turns an evaluation into short prose.
type Summarizer interface {
	Summarize(ctx context.Context, ev *model.Evaluation) (string, error)
}

// Engine binds a tuning to an optional summarizer.
type Engine struct {
	Config     Config
	Summarizer Summarizer
}

func NewEngine(cfg Config, sum Summarizer) *Engine {
	return &Engine{Config: cfg, Summarizer: sum}
}

// Evaluate computes the evaluation and attaches a summary when one can be produced.
// Summarizer failures are logged and leave the structured result untouched.
func (e *Engine) Evaluate(ctx context.Context, snap model.Snapshot) model.Evaluation {
	ev := Evaluate(e.Config, snap)
	if e.Summarizer == nil {
		return ev
	}
	text, err := e.Summarizer.Summarize(ctx, &ev)
	if err != nil {
		log.Printf("op=dispatch.summarize date=%s err=%v", ev.Date, err)
		return ev
	}
	ev.Summary = text
	return ev
}

// EvaluateMany evaluates independent snapshots concurrently. Results keep input order.
func (e *Engine) EvaluateMany(ctx context.Context, snaps []model.Snapshot) ([]model.Evaluation, error) {
	out := make([]model.Evaluation, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range snaps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Evaluate(gctx, snaps[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ForTechnician narrows an evaluation to what concerns one technician. Stats are
// left describing the whole day.
func ForTechnician(ev model.Evaluation, techID string) model.Evaluation {
	out := ev
	out.Conflicts = []model.Conflict{}
	for _, c := range ev.Conflicts {
		if contains(c.TechnicianIDs, techID) {
			out.Conflicts = append(out.Conflicts, c)
		}
	}
	out.OptimizedRoutes = []model.Route{}
	for _, r := range ev.OptimizedRoutes {
		if r.TechnicianID == techID {
			out.OptimizedRoutes = append(out.OptimizedRoutes, r)
		}
	}
	out.AssignmentSuggestions = []model.Suggestion{}
	for _, s := range ev.AssignmentSuggestions {
		if s.TechnicianID == techID {
			out.AssignmentSuggestions = append(out.AssignmentSuggestions, s)
		}
	}
	out.ReassignmentSuggestions = []model.Suggestion{}
	for _, s := range ev.ReassignmentSuggestions {
		if s.TechnicianID == techID || s.CurrentTechnicianID == techID {
			out.ReassignmentSuggestions = append(out.ReassignmentSuggestions, s)
		}
	}
	out.AutoDispatchRecommendations = []model.Recommendation{}
	for _, r := range ev.AutoDispatchRecommendations {
		if r.TechnicianID == techID {
			out.AutoDispatchRecommendations = append(out.AutoDispatchRecommendations, r)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
