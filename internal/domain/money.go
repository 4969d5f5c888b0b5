package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// BidIncrement is the smallest currency unit a bid must exceed the floor by.
var BidIncrement = decimal.New(1, -2)

const maxFractionDigits = 2

// MinimumBid returns floor plus one cent, rounded to cents.
func MinimumBid(floor float64) float64 {
	min, _ := decimal.NewFromFloat(floor).Add(BidIncrement).Round(maxFractionDigits).Float64()
	return min
}

// ValidateAmount rejects non-finite, non-positive and sub-cent amounts.
func ValidateAmount(amount float64) error {
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return fmt.Errorf("%w: amount must be a finite number", ErrValidation)
	}
	d := decimal.NewFromFloat(amount)
	if !d.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !d.Equal(d.Round(maxFractionDigits)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrValidation, d.String(), maxFractionDigits)
	}
	return nil
}

// Exceeds compares two amounts at cent precision.
func Exceeds(amount, floor float64) bool {
	return decimal.NewFromFloat(amount).Round(maxFractionDigits).
		GreaterThan(decimal.NewFromFloat(floor).Round(maxFractionDigits))
}
