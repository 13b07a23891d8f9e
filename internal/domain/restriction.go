package domain

import "time"

// Restriction blocks or unblocks one user on one space. There is at most one
// row per (UserID, SpaceID).
type Restriction struct {
	UserID    string
	SpaceID   string
	IsBlocked bool
	Reason    string
	UpdatedBy string
	UpdatedAt time.Time
}
