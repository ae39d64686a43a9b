package khata

import "github.com/shopspring/decimal"

// ItemRequest is the wire form of a line item. Non-numeric quantity or price fails
// JSON decoding before validation runs.
type ItemRequest struct {
	Item     string           `json:"item" validate:"required,max=200"`
	Quantity *decimal.Decimal `json:"quantity" validate:"required"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
}

// CreateSessionRequest is the body of POST /api/sessions/create.
type CreateSessionRequest struct {
	CustomerName  string        `json:"customerName" validate:"required,max=200"`
	ContactNumber string        `json:"contactNumber" validate:"required,max=50"`
	Items         []ItemRequest `json:"items" validate:"max=500,dive"`
}

// AmountRequest is the body of the add-amount and pay endpoints.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

func (r ItemRequest) input() ItemInput {
	in := ItemInput{Name: r.Item}
	if r.Quantity != nil {
		in.Quantity = *r.Quantity
	}
	if r.Price != nil {
		in.UnitPrice = *r.Price
	}
	return in
}

func (r CreateSessionRequest) input() CreateInput {
	in := CreateInput{
		CustomerName:  r.CustomerName,
		ContactNumber: r.ContactNumber,
		Items:         make([]ItemInput, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		in.Items = append(in.Items, item.input())
	}
	return in
}
