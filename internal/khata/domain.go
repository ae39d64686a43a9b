package khata

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Session is one customer's running tab ("khata").
type Session struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner"`
	CustomerName  string          `json:"customerName"`
	ContactNumber string          `json:"contactNumber"`
	Items         []LineItem      `json:"items"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Remaining     decimal.Decimal `json:"remaining"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// LineItem is a single priced entry within a session.
type LineItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"item"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MarshalJSON writes amounts as JSON numbers, matching what browser clients send.
func (s Session) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID            string      `json:"id"`
		OwnerID       string      `json:"owner"`
		CustomerName  string      `json:"customerName"`
		ContactNumber string      `json:"contactNumber"`
		Items         []LineItem  `json:"items"`
		GrandTotal    json.Number `json:"grandTotal"`
		Remaining     json.Number `json:"remaining"`
		CreatedAt     time.Time   `json:"createdAt"`
		UpdatedAt     time.Time   `json:"updatedAt"`
	}
	items := s.Items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(wire{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		CustomerName:  s.CustomerName,
		ContactNumber: s.ContactNumber,
		Items:         items,
		GrandTotal:    json.Number(s.GrandTotal.String()),
		Remaining:     json.Number(s.Remaining.String()),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
}

// MarshalJSON writes amounts as JSON numbers.
func (i LineItem) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID        string      `json:"id"`
		Name      string      `json:"item"`
		Quantity  json.Number `json:"quantity"`
		UnitPrice json.Number `json:"price"`
		Total     json.Number `json:"total"`
		CreatedAt time.Time   `json:"createdAt"`
	}
	return json.Marshal(wire{
		ID:        i.ID,
		Name:      i.Name,
		Quantity:  json.Number(i.Quantity.String()),
		UnitPrice: json.Number(i.UnitPrice.String()),
		Total:     json.Number(i.Total.String()),
		CreatedAt: i.CreatedAt,
	})
}

// ItemInput carries the caller supplied fields of a new line item.
type ItemInput struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput carries the fields of a new session.
type CreateInput struct {
	CustomerName  string
	ContactNumber string
	Items         []ItemInput
}

// Clone returns a deep copy so callers never share the items backing array.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = append([]LineItem(nil), s.Items...)
	return &out
}
