package analysis

import "github.com/shopspring/decimal"

const (
	quantityPlaces = 2
	sharePlaces    = 4
)

// roundBank rounds half to even so repeated runs and exports agree to the cent.
func roundBank(v float64, places int32) float64 {
	if !finite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}

func round2(v float64) float64 { return roundBank(v, quantityPlaces) }

func round4(v float64) float64 { return roundBank(v, sharePlaces) }
