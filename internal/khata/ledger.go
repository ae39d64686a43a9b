package khata

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The running balance is kept as two independent fields. grandTotal follows the
// item list; remaining is "amount owed" and moves with items, payments and credit.
// Neither is recomputed on read: every mutation below adjusts them incrementally.

// NewSession builds a session with its initial items; remaining starts at grandTotal.
func NewSession(ownerID string, in CreateInput, now time.Time) (*Session, error) {
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return nil, ErrCustomerRequired
	}
	contact := strings.TrimSpace(in.ContactNumber)
	if contact == "" {
		return nil, ErrContactRequired
	}

	sess := &Session{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		CustomerName:  name,
		ContactNumber: contact,
		Items:         make([]LineItem, 0, len(in.Items)),
		GrandTotal:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, input := range in.Items {
		item, err := newLineItem(input, now)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		sess.Items = append(sess.Items, item)
		sess.GrandTotal = sess.GrandTotal.Add(item.Total)
	}
	sess.Remaining = sess.GrandTotal
	return sess, nil
}

// MaxScale is the most decimal places a quantity, price or amount may carry.
// Together with MaxValue it keeps a line total below 1e18 with at most 8 decimal
// places, which every store holds exactly.
const MaxScale = 4

// Exponent and coefficient limits are checked before any arithmetic so that
// inputs such as 1e2000000000 are rejected without being expanded.
const (
	minExponent    = -32
	maxExponent    = 9
	maxCoefficBits = 128
)

// MaxValue is the exclusive upper bound of a quantity, price or amount.
var MaxValue = decimal.New(1, maxExponent)

// ValidateItem checks a line item input without touching any session.
func ValidateItem(in ItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrItemNameRequired
	}
	if !inRange(in.Quantity) {
		return ErrInvalidQuantity
	}
	if !inRange(in.UnitPrice) {
		return ErrInvalidPrice
	}
	return nil
}

// ValidateAmount checks a payment or credit amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !inRange(amount) {
		return ErrInvalidAmount
	}
	return nil
}

// inRange reports whether 0 < d < MaxValue and d has at most MaxScale decimal places.
func inRange(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	exp := d.Exponent()
	if exp < minExponent || exp >= maxExponent || d.Coefficient().BitLen() > maxCoefficBits {
		return false
	}
	if !d.LessThan(MaxValue) {
		return false
	}
	return d.Round(MaxScale).Equal(d)
}

func newLineItem(in ItemInput, now time.Time) (LineItem, error) {
	if err := ValidateItem(in); err != nil {
		return LineItem{}, err
	}
	return LineItem{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Total:     in.Quantity.Mul(in.UnitPrice),
		CreatedAt: now,
	}, nil
}

// AddItem appends an item; both the bill and the amount owed grow by its total.
func (s *Session) AddItem(in ItemInput, now time.Time) (LineItem, error) {
	item, err := newLineItem(in, now)
	if err != nil {
		return LineItem{}, err
	}
	s.Items = append(s.Items, item)
	s.GrandTotal = s.GrandTotal.Add(item.Total)
	s.Remaining = s.Remaining.Add(item.Total)
	return item, nil
}

// DeleteItem removes an item and subtracts its total from grandTotal and remaining,
// each floored at zero.
//
// remaining is reduced even if the item was already paid for or remaining has
// drifted from grandTotal through credits: a single running balance cannot tell
// which part of the debt belongs to which item.
func (s *Session) DeleteItem(itemID string) (LineItem, error) {
	idx := -1
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LineItem{}, ErrItemNotFound
	}
	item := s.Items[idx]
	s.Items = append(s.Items[:idx:idx], s.Items[idx+1:]...)
	s.GrandTotal = floorZero(s.GrandTotal.Sub(item.Total))
	s.Remaining = floorZero(s.Remaining.Sub(item.Total))
	return item, nil
}

// AddAmount raises the amount owed without touching grandTotal.
func (s *Session) AddAmount(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	s.Remaining = s.Remaining.Add(amount)
	return nil
}

// Pay lowers the amount owed, floored at zero. Overpayment is absorbed: no credit
// balance is tracked.
func (s *Session) Pay(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	s.Remaining = floorZero(s.Remaining.Sub(amount))
	return nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
