package model

import "time"

// TokenData contains the data stored with a session token.
type TokenData struct {
	MemberIdentifier string    `json:"member_identifier"`
	Role             Role      `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}
