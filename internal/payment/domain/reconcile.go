package domain

import (
	"github.com/shopspring/decimal"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
)

// Apply posts a payment against a treatment account. Paid plus pending
// always equals the budget total on the returned account.
func Apply(account treatmentdomain.Account, amount decimal.Decimal) (treatmentdomain.Account, error) {
	if !amount.IsPositive() {
		return account, ErrInvalidAmount
	}
	if account.IsFullySettled || !account.AmountPending.IsPositive() {
		return account, ErrAccountSettled
	}
	amount = amount.Round(2)
	if amount.GreaterThan(account.AmountPending) {
		return account, ErrAmountExceedsPending
	}

	pending := account.AmountPending.Sub(amount)
	return treatmentdomain.Account{
		TotalBudget:    account.TotalBudget,
		AmountPaid:     account.AmountPaid.Add(amount),
		AmountPending:  pending,
		IsFullySettled: !pending.IsPositive(),
	}, nil
}

// ApplyToVisit checks a single-visit payment against the visit fee, when
// one was set.
func ApplyToVisit(price decimal.NullDecimal, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if price.Valid && amount.Round(2).GreaterThan(price.Decimal) {
		return ErrAmountExceedsPrice
	}
	return nil
}
