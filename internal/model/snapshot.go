package model

import "time"

// Snapshot is one named JSON document kept on the client between runs.
type Snapshot struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
