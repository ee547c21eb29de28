// Package summary renders an evaluation as a few sentences for dispatchers.
package summary

import (
	"context"
	"fmt"
	"strings"

	"techdispatch/internal/model"
)

// Summarizer is satisfied by Template and OpenAI.
type Summarizer interface {
	Summarize(ctx context.Context, ev *model.Evaluation) (string, error)
}

// Template produces a deterministic counts-based summary. It never fails.
type Template struct{}

func (Template) Summarize(_ context.Context, ev *model.Evaluation) (string, error) {
	if ev == nil {
		return "", nil
	}
	st := ev.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s across %s, %s unassigned.",
		ev.Date, plural(st.ScheduledJobs, "scheduled job"), plural(st.TotalTechnicians, "technician"), plural(st.UnassignedJobs, "job"))

	if st.ConflictsDetected == 0 {
		b.WriteString(" No conflicts detected.")
	} else {
		high := 0
		for _, c := range ev.Conflicts {
			if c.Severity == model.SeverityHigh {
				high++
			}
		}
		fmt.Fprintf(&b, " %s detected", plural(st.ConflictsDetected, "conflict"))
		if high > 0 {
			fmt.Fprintf(&b, " (%d high severity)", high)
		}
		b.WriteString(".")
	}
	if st.AutoDispatchReady > 0 {
		fmt.Fprintf(&b, " %s ready for auto-dispatch.", plural(st.AutoDispatchReady, "job"))
	}
	if st.ReassignmentOpportunities > 0 {
		fmt.Fprintf(&b, " %s could go to a better-fit technician.", plural(st.ReassignmentOpportunities, "job"))
	}
	return b.String(), nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
