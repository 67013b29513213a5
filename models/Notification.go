package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is an in-app notification row. Push delivery is best-effort;
// the row is the durable record the notifications screen lists.
type Notification struct {
	gorm.Model
	UserID uint           `json:"userID" gorm:"not null;index"`
	Type   string         `json:"type" gorm:"size:48;index"` // booking_created, booking_confirmed, ...
	Title  string         `json:"title" gorm:"size:256"`
	Body   string         `json:"body" gorm:"type:text"`
	Data   datatypes.JSON `json:"data"` // deep-link payload mirrored to push
	ReadAt *time.Time     `json:"readAt" gorm:"index"`
}
