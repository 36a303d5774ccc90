package models

import (
	"time"

	"github.com/edupay/institute-ledger-api/internal/ledger"
)

// Student is an independent aggregate holding its own balance. Profile
// mutations and funding are permitted only to the owning principal.
type Student struct {
	ID          string         `db:"id" json:"id"`
	FullName    string         `db:"full_name" json:"full_name"`
	Email       string         `db:"email" json:"email"`
	HomeAddress string         `db:"home_address" json:"home_address"`
	Balance     ledger.Balance `db:"balance" json:"balance"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	Search    string
	OwnerID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
