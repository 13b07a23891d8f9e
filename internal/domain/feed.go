package domain

import "time"

// CalendarFeed is a secret subscription URL that serves a space calendar as ICS
// without an interactive session.
type CalendarFeed struct {
	ID         string
	UserID     string
	SpaceID    string
	CanManage  bool
	SecretHash string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// Active reports whether the feed may still be served.
func (f CalendarFeed) Active() bool {
	return f.RevokedAt == nil
}
