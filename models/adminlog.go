package models

import "time"

// AdminLog is an append-only audit record written once per admin-creation
// action. Entries are never mutated or deleted.
type AdminLog struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	TargetUID string         `json:"targetUid"`
	CreatedBy string         `json:"createdBy"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
}
