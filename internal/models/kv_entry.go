package models

import "time"

// KVEntry is one row of the Postgres-backed key-value table.
// Value holds the JSON encoding of the record stored under Key.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name regardless of gorm's naming strategy.
func (KVEntry) TableName() string {
	return "kv_entries"
}
