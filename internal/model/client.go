package model

import "time"

// Client is the customer a task is done for.
type Client struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (c Client) Key() string { return c.ID }
func (c Client) Clone() Client { return c }
