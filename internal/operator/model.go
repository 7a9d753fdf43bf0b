package operator

import "time"

// Operator represents a human acting on behalf of a registered company.
// Authorization is coarse: an operator may act for the single company it is
// bound to.
type Operator struct {
	ID           string
	Email        string
	Company      string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
	Company  string
}
