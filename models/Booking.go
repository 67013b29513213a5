package models

import (
	"time"

	"gorm.io/gorm"

	"hoy-server/booking"
)

// Booking is one reservation of a property (optionally a single unit of it)
// for a date range. Check-out is exclusive: a booking ending June 4 frees the
// night of June 4. Rows are owned by this service; clients hold a read model.
type Booking struct {
	gorm.Model
	Reference  string    `json:"reference" gorm:"uniqueIndex;size:36"`
	PropertyID uint      `json:"propertyID" gorm:"not null;index"`
	UnitID     *uint     `json:"unitID" gorm:"index"`
	GuestID    uint      `json:"guestID" gorm:"not null;index"`
	CheckIn    time.Time `json:"checkIn" gorm:"not null"`
	CheckOut   time.Time `json:"checkOut" gorm:"not null"`

	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
	Pets     int `json:"pets"`

	TotalPrice float64 `json:"totalPrice"`
	Currency   string  `json:"currency" gorm:"type:varchar(3);default:'USD'"`

	SpecialRequests string `json:"specialRequests" gorm:"type:text"`
	ContactName     string `json:"contactName"`
	ContactEmail    string `json:"contactEmail"`
	ContactPhone    string `json:"contactPhone"`

	PaymentType   string `json:"paymentType" gorm:"type:varchar(20)"`                     // zaad, card, cash
	PaymentStatus string `json:"paymentStatus" gorm:"type:varchar(20);default:'pending'"` // pending, paid, failed, refunded
	PaymentRef    string `json:"paymentRef" gorm:"size:128"`                              // provider transaction/session id

	Status    booking.Status `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ExpiresAt time.Time      `json:"expiresAt"` // 24h window for pending requests

	// Relationships
	Property *Property     `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Unit     *PropertyUnit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Guest    *User         `json:"guest,omitempty" gorm:"foreignKey:GuestID"`
}

// Guests returns the per-category party counts for the calculator.
func (b *Booking) Guests() booking.Guests {
	return booking.Guests{
		Adults:   b.Adults,
		Children: b.Children,
		Infants:  b.Infants,
		Pets:     b.Pets,
	}
}

// Overlaps reports whether the booking's stay intersects [start, end) with
// exclusive check-out.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.CheckIn.Before(end) && b.CheckOut.After(start)
}
