package payout

import (
	"math"

	"creatorhub-payments/pkg/errutil"
)

// DefaultFeeRate is the platform's cut of every payout.
const DefaultFeeRate = 0.05

// Breakdown splits a gross amount into the platform fee and the creator's
// net payout.
type Breakdown struct {
	Gross float64 `json:"gross"`
	Fee   float64 `json:"fee"`
	Net   float64 `json:"net"`
}

// FeeCalculator computes payout breakdowns. Rounding is applied exactly once
// per figure, on the full-precision intermediate value, so fee and net are
// each independently correct to the cent.
type FeeCalculator struct {
	rate float64
}

func NewFeeCalculator(rate float64) *FeeCalculator {
	if rate <= 0 {
		rate = DefaultFeeRate
	}
	return &FeeCalculator{rate: rate}
}

func (f *FeeCalculator) Rate() float64 {
	return f.rate
}

// Calculate returns the breakdown for a gross amount. Negative amounts are
// rejected; zero yields a zero breakdown.
func (f *FeeCalculator) Calculate(gross float64) (Breakdown, error) {
	if gross < 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return Breakdown{}, errutil.ValidationFailed("payout amount must not be negative", nil)
	}

	fee := round2(gross * f.rate)
	net := round2(gross - gross*f.rate)

	return Breakdown{Gross: gross, Fee: fee, Net: net}, nil
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
