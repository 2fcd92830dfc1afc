package pricing

import (
	"math"

	"github.com/cargotrack/backend-cargo/internal/db"
)

// Money is an amount in US dollar cents. All tariff arithmetic happens in
// integer cents so per-parcel charges sum without float drift.
type Money = int64

// Tariff constants in cents. Sea freight bills by volume with a flat
// minimum; air freight bills by the greater of weight and volume with its
// own minimum.
const (
	SeaRatePerFt3    Money = 2500
	SeaMinimumCharge Money = 3500
	AirRatePerLb     Money = 700
	AirRatePerFt3    Money = 700
	AirMinimumCharge Money = 4500

	cubicInchesPerFt3 = 1728
)

// VolumeFt3 derives cubic feet from dimensions measured in inches.
// Negative inputs are clamped to zero.
func VolumeFt3(largoIn, anchoIn, altoIn float64) float64 {
	l := math.Max(largoIn, 0)
	a := math.Max(anchoIn, 0)
	h := math.Max(altoIn, 0)
	return l * a * h / cubicInchesPerFt3
}

// Charge quotes a single parcel under the given transport mode.
//
// Sea: volume times the per-ft³ rate, never below the sea minimum.
// Air: the greater of the weight-based and volume-based amounts, never
// below the air minimum. Fractional cents round half away from zero.
func Charge(mode db.TransportMode, pesoLb, volumenFt3 float64) Money {
	peso := math.Max(pesoLb, 0)
	volumen := math.Max(volumenFt3, 0)

	// Sea freight is the only volume-only tariff; everything else bills
	// under the air formula.
	if mode == db.TransportModeSea {
		return maxMoney(roundCents(float64(SeaRatePerFt3)*volumen), SeaMinimumCharge)
	}
	byWeight := roundCents(float64(AirRatePerLb) * peso)
	byVolume := roundCents(float64(AirRatePerFt3) * volumen)
	return maxMoney(maxMoney(byWeight, byVolume), AirMinimumCharge)
}

// Total sums per-parcel charges for one shipment invoice.
func Total(mode db.TransportMode, parcels []db.Parcel) Money {
	var total Money
	for _, p := range parcels {
		total += Charge(mode, p.PesoLb, p.VolumenFt3)
	}
	return total
}

func roundCents(cents float64) Money {
	return Money(math.Round(cents))
}

func maxMoney(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}
