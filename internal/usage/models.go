package usage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record is one tracked API request, written by the worker from the usage
// queue. Exactly one of UserID or SessionID is set.
type Record struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:char(36);index" json:"user_id,omitempty"`
	SessionID *string    `gorm:"size:64;index" json:"session_id,omitempty"`
	Endpoint  string     `gorm:"size:128" json:"endpoint"`
	UserAgent string     `gorm:"size:256" json:"user_agent"`
	IPAddress string     `gorm:"size:64" json:"ip_address"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Record) TableName() string { return "usage_records" }

func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
