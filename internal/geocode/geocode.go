// Package geocode resolves job addresses to coordinates before evaluation.
package geocode

import (
	"context"
	"log"
	"strings"

	"techdispatch/internal/model"
	"techdispatch/internal/obs"
)

// Geocoder resolves one address. ok is false when the address is unknown upstream;
// err is reserved for transport or protocol failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (p model.GeoPoint, ok bool, err error)
}

// Normalize collapses whitespace so equivalent addresses share cache keys.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FillJobs returns a copy of jobs where missing coordinates were resolved from the
// job address. Lookups that fail are logged and leave the job without coordinates,
// so a geocoder outage never blocks an evaluation.
func FillJobs(ctx context.Context, g Geocoder, jobs []model.Job) (_ []model.Job, filled int) {
	var err error
	defer obs.Time(ctx, "geocode.FillJobs")(&err)

	out := append([]model.Job(nil), jobs...)
	if g == nil {
		return out, 0
	}
	seen := map[string]*model.GeoPoint{}
	for i := range out {
		j := &out[i]
		if _, ok := j.Point(); ok {
			continue
		}
		addr := Normalize(j.Address)
		if addr == "" {
			continue
		}
		p, cached := seen[addr]
		if !cached {
			pt, ok, gerr := g.Geocode(ctx, addr)
			if gerr != nil {
				log.Printf("req_id=%s op=geocode.fill job=%s err=%v", obs.RequestID(ctx), j.ID, gerr)
				if ctx.Err() != nil {
					break
				}
				continue
			}
			if ok {
				p = &pt
			}
			seen[addr] = p
		}
		if p == nil {
			continue
		}
		lat, lng := p.Lat, p.Lng
		j.Lat, j.Lng = &lat, &lng
		filled++
	}
	return out, filled
}
