package models

import "time"

// Record mirrors the common column shape shared by every normalized VT
// table. Entity attributes beyond these columns live in Data as jsonb.
type Record struct {
	ID              string
	CompanyID       string
	DivisionID      string
	GUID            string
	Name            string
	AlterID         int64
	Amount          string
	Data            []byte
	SourceUpdatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSyncedAt    time.Time
}
