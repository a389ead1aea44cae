package feed

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount that always serializes with two fractional digits.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d.Round(2)} }

// ParseMoney accepts "12.5", "12.50" or "12".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

func (m Money) String() string { return m.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) { return json.Marshal(m.StringFixed(2)) }

// UnmarshalJSON accepts both quoted and bare JSON numbers.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.Decimal = d.Round(2)
	return nil
}

// PurchaseEvent is one "someone just purchased" record. ID is the dedup key:
// a persisted order identifier or a synthesized one.
type PurchaseEvent struct {
	ID           string    `json:"id"`
	Shop         string    `json:"shop"`
	OrderNumber  string    `json:"orderNumber"`
	TotalPrice   Money     `json:"totalPrice"`
	Currency     string    `json:"currency"`
	CustomerName string    `json:"customerName,omitempty"`
	ProductName  string    `json:"productName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName returns the customer name or fallback when the order has none.
func (e PurchaseEvent) DisplayName(fallback string) string {
	if n := strings.TrimSpace(e.CustomerName); n != "" {
		return n
	}
	return fallback
}

// Synthetic reports whether the event was fabricated for demo mode.
func (e PurchaseEvent) Synthetic() bool { return e.ProductName != "" }
