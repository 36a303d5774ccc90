package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func subject() Subject {
	return Subject{
		Owner:      "owner-1",
		Capability: "cap-token-1",
		Admins: []Grant{
			{Principal: "admin-1", Role: "admin"},
			{Principal: "advisor-1", Role: "financial_advisor"},
		},
	}
}

func TestOwnerMatch(t *testing.T) {
	p := OwnerMatch()
	assert.True(t, p.Authorize(subject(), Actor{Principal: "owner-1"}, Owner()))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "owner-1"}, Admin()))
	assert.False(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Admin()))
	assert.False(t, p.Authorize(Subject{}, Actor{}, Owner()), "empty principal never matches")
}

func TestCapabilityMatch(t *testing.T) {
	p := CapabilityMatch()
	assert.True(t, p.Authorize(subject(), Actor{Capability: "cap-token-1"}, Owner()))
	assert.True(t, p.Authorize(subject(), Actor{Capability: "cap-token-1"}, Admin()))
	assert.False(t, p.Authorize(subject(), Actor{Capability: "cap-token-2"}, Admin()))

	blank := subject()
	blank.Capability = ""
	assert.False(t, p.Authorize(blank, Actor{Capability: ""}, Admin()), "unset token must never match")
}

func TestRoleTable(t *testing.T) {
	p := RoleTable()
	assert.True(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Admin()))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "advisor-1"}, Role("financial_advisor")))
	assert.False(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Role("financial_advisor")))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Role("admin", "financial_advisor")))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "advisor-1"}, Role("admin", "financial_advisor")))
	assert.False(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Owner()), "admins are not owners")
	assert.False(t, p.Authorize(subject(), Actor{Principal: "stranger"}, Admin()))
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	assert.True(t, p.Authorize(subject(), Actor{Principal: "owner-1"}, Owner()))
	assert.True(t, p.Authorize(subject(), Actor{Capability: "cap-token-1"}, Owner()))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Admin()))
	assert.True(t, p.Authorize(subject(), Actor{Principal: "advisor-1"}, Role("financial_advisor")))

	assert.False(t, p.Authorize(subject(), Actor{Principal: "admin-1"}, Owner()))
	assert.False(t, p.Authorize(subject(), Actor{Principal: "stranger"}, Admin()))
	assert.False(t, p.Authorize(subject(), Actor{}, Admin()))
}
