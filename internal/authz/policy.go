// Package authz decides whether a caller may perform a privileged action
// against an institute. The three authorization encodings used across the
// deployment (owner principal, capability token, role table) sit behind one
// pure predicate so call sites never branch on scheme.
package authz

type levelKind int

const (
	kindOwner levelKind = iota
	kindAdmin
)

// Level is the privilege a call site requires.
type Level struct {
	kind  levelKind
	roles []string
}

// Owner requires the caller to be the institute owner (or hold its
// capability token, which carries full privilege).
func Owner() Level {
	return Level{kind: kindOwner}
}

// Admin requires the caller to be the owner or any listed admin.
func Admin() Level {
	return Level{kind: kindAdmin}
}

// Role requires the caller to be the owner or an admin holding one of the
// named roles, e.g. "admin" or "financial_advisor".
func Role(names ...string) Level {
	return Level{kind: kindAdmin, roles: names}
}

// Grant names a principal authorized for an institute, optionally tagged
// with a role.
type Grant struct {
	Principal string
	Role      string
}

// Subject is the authorization metadata of one institute.
type Subject struct {
	Owner      string
	Capability string
	Admins     []Grant
}

// Actor identifies the caller: its principal and, when presented, a
// capability token.
type Actor struct {
	Principal  string
	Capability string
}

// Policy answers whether the actor holds the required level for the subject.
// Implementations are pure predicates with no side effects; failure is
// signaled by the caller, not here.
type Policy interface {
	Authorize(s Subject, a Actor, lvl Level) bool
}

type ownerPolicy struct{}

// OwnerMatch authorizes the institute owner for every level.
func OwnerMatch() Policy {
	return ownerPolicy{}
}

func (ownerPolicy) Authorize(s Subject, a Actor, _ Level) bool {
	return a.Principal != "" && a.Principal == s.Owner
}

type capabilityPolicy struct{}

// CapabilityMatch authorizes holders of the institute's capability token.
// The token is bound 1:1 to the institute and grants full privilege, so the
// check is identity equality regardless of level.
func CapabilityMatch() Policy {
	return capabilityPolicy{}
}

func (capabilityPolicy) Authorize(s Subject, a Actor, _ Level) bool {
	return a.Capability != "" && s.Capability != "" && a.Capability == s.Capability
}

type roleTablePolicy struct{}

// RoleTable authorizes listed admins for Admin-kind levels. It never
// satisfies Owner: membership in the admin table does not make a caller the
// owner.
func RoleTable() Policy {
	return roleTablePolicy{}
}

func (roleTablePolicy) Authorize(s Subject, a Actor, lvl Level) bool {
	if lvl.kind != kindAdmin || a.Principal == "" {
		return false
	}
	for _, g := range s.Admins {
		if g.Principal != a.Principal {
			continue
		}
		if len(lvl.roles) == 0 {
			return true
		}
		for _, name := range lvl.roles {
			if g.Role == name {
				return true
			}
		}
	}
	return false
}

type chainPolicy struct {
	policies []Policy
}

// Chain combines policies; the first one that allows wins.
func Chain(policies ...Policy) Policy {
	return chainPolicy{policies: policies}
}

func (c chainPolicy) Authorize(s Subject, a Actor, lvl Level) bool {
	for _, p := range c.policies {
		if p.Authorize(s, a, lvl) {
			return true
		}
	}
	return false
}

// Default is the deployment policy: owner equality, capability token
// equality, then role-table membership.
func Default() Policy {
	return Chain(OwnerMatch(), CapabilityMatch(), RoleTable())
}
