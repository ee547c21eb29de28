package metrics

import "testing"

func TestRegisterDefaultIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Conflicts.WithLabelValues("overlap", "high").Inc()
	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "dispatch_conflicts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter().GetValue() >= 1 {
				return
			}
		}
	}
	t.Fatalf("dispatch_conflicts_total not gathered")
}
