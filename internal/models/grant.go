package models

import "time"

// GrantRequest has exactly two states: requested and approved. The approved
// flag transitions once and is terminal; an unapproved request simply stays
// pending.
type GrantRequest struct {
	ID              string    `db:"id" json:"id"`
	InstituteID     string    `db:"institute_id" json:"institute_id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	AmountRequested int64     `db:"amount_requested" json:"amount_requested"`
	Reason          string    `db:"reason" json:"reason"`
	Approved        bool      `db:"approved" json:"approved"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// GrantApproval is the immutable audit record written exactly once per
// approved request. The approved amount may differ from the requested one.
type GrantApproval struct {
	ID             string    `db:"id" json:"id"`
	GrantRequestID string    `db:"grant_request_id" json:"grant_request_id"`
	ApprovedBy     string    `db:"approved_by" json:"approved_by"`
	AmountApproved int64     `db:"amount_approved" json:"amount_approved"`
	Reason         string    `db:"reason" json:"reason"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GrantApprovalDetail enriches an approval with the student the payout went
// to, resolved through the originating request.
type GrantApprovalDetail struct {
	GrantApproval
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// GrantFilter provides filters for listing grant requests.
type GrantFilter struct {
	StudentID string
	Approved  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
