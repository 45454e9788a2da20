// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import "time"

// Kind tells which variant an Identity holds.
type Kind int

const (
	KindAnonymous Kind = iota
	KindGuest
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindGuest:
		return "guest"
	case KindAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Identity is the resolved caller of a request: anonymous, a guest, or an
// authenticated user. The zero value is anonymous.
type Identity struct {
	Kind       Kind
	UserID     int64
	GuestSince time.Time
}

// Anonymous returns the identity of a caller without a session.
func Anonymous() Identity {
	return Identity{}
}

// Guest returns a guest identity created at since.
func Guest(since time.Time) Identity {
	return Identity{Kind: KindGuest, GuestSince: since}
}

// Authenticated returns the identity of a logged in user.
func Authenticated(userID int64) Identity {
	return Identity{Kind: KindAuthenticated, UserID: userID}
}

func (i Identity) IsAuthenticated() bool {
	return i.Kind == KindAuthenticated && i.UserID > 0
}

func (i Identity) IsGuest() bool {
	return i.Kind == KindGuest
}

func (i Identity) IsAnonymous() bool {
	return !i.IsAuthenticated() && !i.IsGuest()
}

// CurrentUserID returns the user id for authenticated identities.
func (i Identity) CurrentUserID() (int64, bool) {
	if !i.IsAuthenticated() {
		return 0, false
	}
	return i.UserID, true
}
