package models

import "time"

// Statement entry kinds.
const (
	StatementKindEnrollmentFee = "ENROLLMENT_FEE"
	StatementKindGrantPayout   = "GRANT_PAYOUT"
	StatementKindWithdrawal    = "WITHDRAWAL"
)

// StatementEntry is one line of an institute's financial statement, derived
// from the immutable enrollment, grant approval and withdrawal records.
type StatementEntry struct {
	OccurredAt   time.Time `json:"occurred_at"`
	Kind         string    `json:"kind"`
	Counterparty string    `json:"counterparty"`
	Amount       int64     `json:"amount"`
	Direction    string    `json:"direction"`
}

// Statement directions.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)
