package pricing

import (
	"testing"

	"github.com/cargotrack/backend-cargo/internal/db"
)

func TestChargeSeaMinimumApplies(t *testing.T) {
	// 1.2 ft³ at 25 USD/ft³ is 30 USD, below the 35 USD floor.
	got := Charge(db.TransportModeSea, 5, 1.2)
	if got != 3500 {
		t.Fatalf("expected 3500 cents, got %d", got)
	}
}

func TestChargeSeaAboveMinimum(t *testing.T) {
	got := Charge(db.TransportModeSea, 0, 2)
	if got != 5000 {
		t.Fatalf("expected 5000 cents, got %d", got)
	}
}

func TestChargeSeaZeroVolume(t *testing.T) {
	if got := Charge(db.TransportModeSea, 100, 0); got != SeaMinimumCharge {
		t.Fatalf("expected minimum %d for zero volume, got %d", SeaMinimumCharge, got)
	}
}

func TestChargeAirWeightDominates(t *testing.T) {
	// 10 lb at 7 USD/lb beats 2 ft³ at 7 USD/ft³ and the 45 USD floor.
	got := Charge(db.TransportModeAir, 10, 2)
	if got != 7000 {
		t.Fatalf("expected 7000 cents, got %d", got)
	}
}

func TestChargeAirVolumeDominates(t *testing.T) {
	got := Charge(db.TransportModeAir, 2, 12)
	if got != 8400 {
		t.Fatalf("expected 8400 cents, got %d", got)
	}
}

func TestChargeAirMinimumApplies(t *testing.T) {
	if got := Charge(db.TransportModeAir, 1, 1); got != AirMinimumCharge {
		t.Fatalf("expected minimum %d, got %d", AirMinimumCharge, got)
	}
}

func TestChargeNegativeInputsClamped(t *testing.T) {
	if got := Charge(db.TransportModeAir, -50, -3); got != AirMinimumCharge {
		t.Fatalf("expected minimum %d for negative inputs, got %d", AirMinimumCharge, got)
	}
	if got := Charge(db.TransportModeSea, 0, -1); got != SeaMinimumCharge {
		t.Fatalf("expected minimum %d for negative volume, got %d", SeaMinimumCharge, got)
	}
}

func TestChargeNonSeaModeBillsAsAir(t *testing.T) {
	if got := Charge(db.TransportMode("tren"), 10, 2); got != 7000 {
		t.Fatalf("expected air formula for non-sea mode, got %d", got)
	}
}

func TestChargeRoundsFractionalCents(t *testing.T) {
	// 1.4143 ft³ * 2500 = 3535.75 cents, rounds up.
	if got := Charge(db.TransportModeSea, 0, 1.4143); got != 3536 {
		t.Fatalf("expected 3536 cents, got %d", got)
	}
}

func TestVolumeFt3(t *testing.T) {
	if got := VolumeFt3(12, 12, 12); got != 1 {
		t.Fatalf("expected 1 ft³, got %v", got)
	}
	if got := VolumeFt3(-12, 12, 12); got != 0 {
		t.Fatalf("expected 0 ft³ for negative dimension, got %v", got)
	}
}

func TestTotalSumsPerParcelCharges(t *testing.T) {
	parcels := []db.Parcel{
		{PesoLb: 5, VolumenFt3: 1.2}, // sea minimum
		{PesoLb: 0, VolumenFt3: 2},   // 5000
	}
	if got := Total(db.TransportModeSea, parcels); got != 8500 {
		t.Fatalf("expected 8500 cents, got %d", got)
	}
	if got := Total(db.TransportModeSea, nil); got != 0 {
		t.Fatalf("expected 0 for empty shipment, got %d", got)
	}
}
