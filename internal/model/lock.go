package model

import "time"

// Lock is a named mutual-exclusion row. A lock past ExpiresAt is free.
type Lock struct {
	Name      string `gorm:"primaryKey"`
	Owner     string
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}
