package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type BudgetSubItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type BudgetItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	SubItems    []BudgetSubItem `json:"subitems,omitempty"`
}

// LineTotal is quantity times unit price, unless the item has sub-items, in
// which case only the sub-items count.
func LineTotal(item BudgetItem) decimal.Decimal {
	if len(item.SubItems) == 0 {
		return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}
	total := decimal.Zero
	for _, sub := range item.SubItems {
		total = total.Add(sub.UnitPrice.Mul(decimal.NewFromInt(int64(sub.Quantity))))
	}
	return total
}

func GrandTotal(items []BudgetItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total.Round(2)
}

// ItemError pins a budget validation failure to a field.
type ItemError struct {
	Index    int
	SubIndex int // -1 when the error is on the item itself
	Field    string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path(), e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func (e *ItemError) Path() string {
	if e.SubIndex >= 0 {
		return fmt.Sprintf("items[%d].subitems[%d].%s", e.Index, e.SubIndex, e.Field)
	}
	return fmt.Sprintf("items[%d].%s", e.Index, e.Field)
}

// ValidateItems must pass before LineTotal or GrandTotal see the items.
func ValidateItems(items []BudgetItem) error {
	if len(items) == 0 {
		return ErrEmptyBudget
	}
	for i, item := range items {
		if err := validateLine(item.Description, item.Quantity, item.UnitPrice); err != nil {
			err.Index, err.SubIndex = i, -1
			return err
		}
		for j, sub := range item.SubItems {
			if err := validateLine(sub.Description, sub.Quantity, sub.UnitPrice); err != nil {
				err.Index, err.SubIndex = i, j
				return err
			}
		}
	}
	return nil
}

func validateLine(description string, quantity int, unitPrice decimal.Decimal) *ItemError {
	switch {
	case strings.TrimSpace(description) == "":
		return &ItemError{Field: "description", Err: ErrInvalidItemDescription}
	case quantity < 1:
		return &ItemError{Field: "quantity", Err: ErrInvalidItemQuantity}
	case unitPrice.IsNegative():
		return &ItemError{Field: "unit_price", Err: ErrInvalidItemUnitPrice}
	}
	return nil
}

// NormalizeItems trims descriptions and rounds prices to cents.
func NormalizeItems(items []BudgetItem) []BudgetItem {
	out := make([]BudgetItem, len(items))
	for i, item := range items {
		out[i] = BudgetItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Round(2),
		}
		if len(item.SubItems) > 0 {
			out[i].SubItems = make([]BudgetSubItem, len(item.SubItems))
			for j, sub := range item.SubItems {
				out[i].SubItems[j] = BudgetSubItem{
					Description: strings.TrimSpace(sub.Description),
					Quantity:    sub.Quantity,
					UnitPrice:   sub.UnitPrice.Round(2),
				}
			}
		}
	}
	return out
}
