package ledger

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Balance holds a non-negative amount of value owned by exactly one
// aggregate. The amount is unexported so a non-zero Balance cannot be
// fabricated outside this package; value only enters a Balance through
// Deposit or Accept and only leaves through Withdraw.
type Balance struct {
	amount int64
}

// Funds is a detached amount produced by Withdraw. It must be consumed by
// exactly one Accept call; it cannot be duplicated or constructed directly.
type Funds struct {
	amount int64
	spent  bool
}

// Zero returns an empty balance.
func Zero() Balance {
	return Balance{}
}

// Amount reports the current value.
func (b Balance) Amount() int64 {
	return b.amount
}

// Covers reports whether the balance can pay the given amount.
func (b Balance) Covers(amount int64) bool {
	return amount >= 0 && b.amount >= amount
}

// Deposit increases the balance. Negative amounts are rejected.
func (b *Balance) Deposit(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("deposit amount must not be negative, got %d", amount)
	}
	b.amount += amount
	return nil
}

// Withdraw detaches amount from the balance, failing when the balance does
// not cover it. On failure the balance is unchanged.
func (b *Balance) Withdraw(amount int64) (*Funds, error) {
	if amount < 0 {
		return nil, fmt.Errorf("withdraw amount must not be negative, got %d", amount)
	}
	if b.amount < amount {
		return nil, ErrInsufficientBalance
	}
	b.amount -= amount
	return &Funds{amount: amount}, nil
}

// Accept absorbs detached funds into the balance. Funds can be accepted only
// once; a second attempt fails and leaves the balance unchanged.
func (b *Balance) Accept(f *Funds) error {
	if f == nil {
		return fmt.Errorf("accept requires funds")
	}
	if f.spent {
		return fmt.Errorf("funds already consumed")
	}
	f.spent = true
	b.amount += f.amount
	return nil
}

// Amount reports the detached value carried by the funds.
func (f *Funds) Amount() int64 {
	return f.amount
}

// Transfer moves amount from one balance to another as a single step. When
// the source cannot cover the amount, both balances are unchanged. The value
// never exists in both balances at once.
func Transfer(from, to *Balance, amount int64) error {
	funds, err := from.Withdraw(amount)
	if err != nil {
		return err
	}
	return to.Accept(funds)
}

// Restore rebuilds a balance from a persisted amount. Negative persisted
// values are rejected so a corrupt row cannot smuggle in a negative balance.
func Restore(amount int64) (Balance, error) {
	if amount < 0 {
		return Balance{}, fmt.Errorf("persisted balance must not be negative, got %d", amount)
	}
	return Balance{amount: amount}, nil
}

// Value implements driver.Valuer so Balance persists as BIGINT.
func (b Balance) Value() (driver.Value, error) {
	return b.amount, nil
}

// Scan implements sql.Scanner.
func (b *Balance) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		restored, err := Restore(v)
		if err != nil {
			return err
		}
		*b = restored
		return nil
	case nil:
		*b = Zero()
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ledger.Balance", src)
	}
}

// MarshalJSON renders the balance as its amount.
func (b Balance) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", b.amount)), nil
}

// UnmarshalJSON parses an amount, rejecting negatives. The whole token must
// be an integer; trailing input is an error.
func (b *Balance) UnmarshalJSON(data []byte) error {
	amount, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse balance: %w", err)
	}
	restored, err := Restore(amount)
	if err != nil {
		return err
	}
	*b = restored
	return nil
}
