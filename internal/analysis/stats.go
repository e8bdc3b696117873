package analysis

import (
	"math"
	"sort"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// Stats summarizes a demand series.
type Stats struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	CV           float64 `json:"cv"`
	Observations int     `json:"observations"`
}

// Describe computes mean, sample deviation (N-1) and CV. Deviation is 0 below
// two observations and CV is 0 unless the mean is positive.
func Describe(values []float64) Stats {
	s := Stats{Observations: len(values)}
	if len(values) == 0 {
		return s
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(len(values))

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - s.Mean
			sq += d * d
		}
		s.StdDev = math.Sqrt(sq / float64(len(values)-1))
	}
	if s.Mean > 0 && finite(s.StdDev) {
		s.CV = s.StdDev / s.Mean
	}
	if !finite(s.CV) {
		s.CV = 0
	}
	return s
}

// ValueEntry is one entity to rank for ABC.
type ValueEntry struct {
	Entity string
	Value  float64
}

// ABCResult is the Pareto position of one entity.
type ABCResult struct {
	Entity     string          `json:"entity"`
	Value      float64         `json:"value"`
	Share      float64         `json:"share"`
	Cumulative float64         `json:"cumulative"`
	Class      domain.ABCClass `json:"class"`
	Rank       int             `json:"rank"`
}

// ClassifyABC sorts entries by value (descending, stable) and labels each by its
// running cumulative share: <= a is A, <= b is B, otherwise C. With a zero
// total every share is 0 and every entity is A.
func ClassifyABC(entries []ValueEntry, a, b float64) []ABCResult {
	out := make([]ABCResult, len(entries))
	var total float64
	for i, e := range entries {
		out[i] = ABCResult{Entity: e.Entity, Value: e.Value}
		total += e.Value
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })

	var cum float64
	for i := range out {
		if total > 0 {
			out[i].Share = out[i].Value / total
		}
		cum += out[i].Share
		out[i].Cumulative = cum
		out[i].Rank = i + 1
		switch {
		case cum <= a:
			out[i].Class = domain.ClassA
		case cum <= b:
			out[i].Class = domain.ClassB
		default:
			out[i].Class = domain.ClassC
		}
	}
	return out
}

// ClassifyXYZ labels demand variability: cv <= x is X, cv <= y is Y, otherwise Z.
func ClassifyXYZ(cv, x, y float64) domain.XYZClass {
	switch {
	case cv <= x:
		return domain.ClassX
	case cv <= y:
		return domain.ClassY
	default:
		return domain.ClassZ
	}
}

// DemandLevelFor buckets the number of trailing months with sales.
func DemandLevelFor(activeMonths int) domain.DemandLevel {
	switch {
	case activeMonths <= 0:
		return domain.DemandNone
	case activeMonths <= 3:
		return domain.DemandLow
	case activeMonths <= 6:
		return domain.DemandMedium
	default:
		return domain.DemandHigh
	}
}

func activeMonths(values []float64) int {
	n := 0
	for _, v := range values {
		if v > 0 {
			n++
		}
	}
	return n
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
