package domain

import "time"

// Role is the sole authorization axis. There are no per-ticket ACLs beyond
// ownership and assignment.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether the role may see internal comments and all tickets.
func (r Role) Staff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Principal is an already-authenticated identity. Token parsing happens at
// the transport boundary; the core only ever sees this pair.
type Principal struct {
	UserID string
	Role   Role
}

// SystemPrincipal acts for internal sweeps (auto-closure, escalation).
func SystemPrincipal() Principal {
	return Principal{UserID: "system", Role: RoleAdmin}
}

// Relationship places a principal relative to a ticket.
type Relationship string

const (
	RelationshipCreator  Relationship = "CREATOR"
	RelationshipAssignee Relationship = "ASSIGNEE"
	RelationshipNone     Relationship = "NONE"
)

// RelationshipTo computes the principal's relationship to a ticket. Creator
// wins when the principal is both creator and assignee.
func (p Principal) RelationshipTo(ticket *Ticket) Relationship {
	if ticket == nil {
		return RelationshipNone
	}
	if ticket.CreatedBy == p.UserID {
		return RelationshipCreator
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == p.UserID {
		return RelationshipAssignee
	}
	return RelationshipNone
}

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive      UserStatus = "ACTIVE"
	UserStatusDeactivated UserStatus = "DEACTIVATED"
)

// User is the account model behind a Principal.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
