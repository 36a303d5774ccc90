package models

import (
	"time"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/ledger"
)

// Institute is the aggregate owning courses, enrollments and grant requests.
// Fees and balance are amounts in the platform's minor currency unit; both
// are non-negative at all times.
type Institute struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Email      string         `db:"email" json:"email"`
	Phone      string         `db:"phone" json:"phone"`
	Fees       int64          `db:"fees" json:"fees"`
	Balance    ledger.Balance `db:"balance" json:"balance"`
	OwnerID    string         `db:"owner_id" json:"owner_id"`
	Capability string         `db:"capability" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// InstituteAdmin is one row of the institute's role table.
type InstituteAdmin struct {
	InstituteID string    `db:"institute_id" json:"institute_id"`
	Principal   string    `db:"principal" json:"principal"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AuthzSubject assembles the institute's authorization metadata for policy
// evaluation.
func (i *Institute) AuthzSubject(admins []InstituteAdmin) authz.Subject {
	grants := make([]authz.Grant, len(admins))
	for idx, a := range admins {
		grants[idx] = authz.Grant{Principal: a.Principal, Role: a.Role}
	}
	return authz.Subject{Owner: i.OwnerID, Capability: i.Capability, Admins: grants}
}

// Withdrawal is the immutable payout record written by
// institute balance withdrawals.
type Withdrawal struct {
	ID          string    `db:"id" json:"id"`
	InstituteID string    `db:"institute_id" json:"institute_id"`
	Amount      int64     `db:"amount" json:"amount"`
	PaidTo      string    `db:"paid_to" json:"paid_to"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// InstituteSummary aggregates the figures shown on an institute dashboard.
type InstituteSummary struct {
	InstituteID     string    `json:"institute_id"`
	Balance         int64     `json:"balance"`
	Fees            int64     `json:"fees"`
	CourseCount     int       `json:"course_count"`
	EnrollmentCount int       `json:"enrollment_count"`
	PendingGrants   int       `json:"pending_grants"`
	GeneratedAt     time.Time `json:"generated_at"`
}
