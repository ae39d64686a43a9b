package khata

import (
	"fmt"

	"github.com/khata-app/khata/internal/shared"
)

// Domain errors for the session ledger.
var (
	// ErrSessionNotFound covers both absent sessions and sessions owned by someone else.
	ErrSessionNotFound = fmt.Errorf("session %w", shared.ErrNotFound)
	// ErrItemNotFound indicates the item id is not part of the session.
	ErrItemNotFound = fmt.Errorf("item %w in session", shared.ErrNotFound)

	ErrCustomerRequired = fmt.Errorf("%w: customer name is required", shared.ErrValidation)
	ErrContactRequired  = fmt.Errorf("%w: contact number is required", shared.ErrValidation)
	ErrItemNameRequired = fmt.Errorf("%w: item name is required", shared.ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be a positive number below 1,000,000,000 with at most 4 decimal places", shared.ErrValidation)
	ErrInvalidPrice     = fmt.Errorf("%w: price must be a positive number below 1,000,000,000 with at most 4 decimal places", shared.ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be a positive number below 1,000,000,000 with at most 4 decimal places", shared.ErrValidation)
)
