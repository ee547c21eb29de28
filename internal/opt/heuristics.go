package opt

import "techdispatch/internal/model"

// ImproveOrder2Opt applies 2-opt swaps to an open path over pts, keeping the
// first position (the origin) fixed. order indexes into pts.
func ImproveOrder2Opt(pts []model.GeoPoint, order []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), order...)
	bestDist := pathDistance(pts, best)
	n := len(order)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				d := pathDistance(pts, cand)
				if d+1e-6 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

func pathDistance(pts []model.GeoPoint, order []int) float64 {
	total := 0.0
	for i := 0; i < len(order)-1; i++ {
		a := pts[order[i]]
		b := pts[order[i+1]]
		total += DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return total
}
