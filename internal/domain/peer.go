// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUserIDEmpty     = errors.New("user id empty")
)

type UserID string

// Peer is a remote participant in the active channel. Username is set once
// at join time and never rewritten by later state updates.
type Peer struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewPeer is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewPeer(id UserID, username string) (*Peer, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Peer{ID: id, Username: username}, nil
}
