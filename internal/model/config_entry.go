package model

import "time"

// ConfigEntry mirrors the 'site_config' table. Key is a dot-delimited path
// unique among active rows; Value is stored as a string and coerced to its
// semantic type on read. IsActive provides soft delete.
type ConfigEntry struct {
	ID          uint64    `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	UpdatedBy   string    `json:"updatedBy"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
