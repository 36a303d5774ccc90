package ledger

import "errors"

// ErrInsufficientBalance is returned when a withdrawal or transfer exceeds
// the available amount.
var ErrInsufficientBalance = errors.New("insufficient balance")
