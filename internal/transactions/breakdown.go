package transactions

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

const weightScale = 3

var (
	// FeeRate is the share of every drop-off retained by the committee.
	FeeRate     = decimal.New(10, -2)
	maxWeightKg = decimal.NewFromInt(100_000)
)

// Breakdown is the money computed for one weighed line. All amounts are
// whole Rupiah rounded half away from zero.
type Breakdown struct {
	WeightKg     decimal.Decimal `json:"weight_kg"`
	PricePerKg   int64           `json:"price_per_kg"`
	TotalAmount  int64           `json:"total_amount"`
	CommitteeFee int64           `json:"committee_fee"`
	NetAmount    int64           `json:"net_amount"`
}

// ComputeBreakdown derives total, fee and net from a weight and a price.
// fee + net always equals total.
func ComputeBreakdown(weight decimal.Decimal, pricePerKg int64) (Breakdown, error) {
	if err := ValidateWeight(weight); err != nil {
		return Breakdown{}, err
	}
	if pricePerKg <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "price_per_kg must be positive")
	}
	total := weight.Mul(decimal.NewFromInt(pricePerKg)).Round(0)
	fee := total.Mul(FeeRate).Round(0)
	return Breakdown{
		WeightKg:     weight,
		PricePerKg:   pricePerKg,
		TotalAmount:  total.IntPart(),
		CommitteeFee: fee.IntPart(),
		NetAmount:    total.Sub(fee).IntPart(),
	}, nil
}

// ValidateWeight accepts positive weights with at most gram precision.
func ValidateWeight(weight decimal.Decimal) error {
	if !weight.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight_kg must be greater than zero")
	}
	if !weight.Equal(weight.Round(weightScale)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight_kg supports at most 3 decimal places")
	}
	if weight.GreaterThan(maxWeightKg) {
		return pkgerrors.New(pkgerrors.CodeValidation, "weight_kg is too large")
	}
	return nil
}
