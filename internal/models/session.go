package models

import "time"

// AdminSession is the server side half of an admin token.
type AdminSession struct {
	ID        string    `json:"id"`
	Client    string    `json:"client"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
