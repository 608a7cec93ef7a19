package model

// Role determines what a member is allowed to do.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MemberStatus is the lifecycle state of a member account.
type MemberStatus string

const (
	// MemberActive members can log in and use the ledger.
	MemberActive MemberStatus = "active"
	// MemberPending members are awaiting admin approval after self-registration.
	MemberPending MemberStatus = "pending"
)

// Member represents a club participant.
// Identifier is the immutable unique key used everywhere in the ledger;
// Name is display-only and never used as a foreign key.
type Member struct {
	Identifier string       `json:"identifier"`
	Name       string       `json:"name"`
	Secret     string       `json:"-"`
	Role       Role         `json:"role"`
	Status     MemberStatus `json:"status"`
}

// IsAdmin reports whether the member has the admin role.
func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// IsActive reports whether the member may log in and transact.
func (m *Member) IsActive() bool {
	return m.Status == MemberActive
}
