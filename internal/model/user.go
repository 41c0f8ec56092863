package model

import "time"

// User is a team member that tasks can be assigned to.
type User struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `json:"name"`
	Email       string    `gorm:"index" json:"email"`
	Role        string    `json:"role"`
	Avatar      string    `json:"avatar"`
	AvatarColor string    `json:"avatarColor,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (u User) Key() string { return u.ID }
func (u User) Clone() User { return u }
