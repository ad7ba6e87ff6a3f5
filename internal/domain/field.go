package domain

import "time"

// Field represents a monitored agricultural area. The ID is externally
// supplied (it arrives in the CSV), so it is not auto-incremented. Fields are
// created lazily the first time a reading references an unseen ID and are
// never deleted.
type Field struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Location  string    `gorm:"type:text" json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Field.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Field) TableName() string {
	return "fields"
}
