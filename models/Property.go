package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Property struct {
	gorm.Model
	HostID             uint    `json:"hostID" gorm:"index"`
	Title              string  `json:"title"`
	Slug               string  `json:"slug" gorm:"uniqueIndex;size:256"`
	Description        string  `json:"description" gorm:"type:text"`
	PropertyType       string  `json:"propertyType"` // entire_place, private_room, shared_room
	AddressLine1       string  `json:"addressLine1"`
	AddressLine2       string  `json:"addressLine2"`
	City               string  `json:"city"`
	Region             string  `json:"region"`
	Country            string  `json:"country"`
	Lat                float32 `json:"lat"`
	Lng                float32 `json:"lng"`
	Capacity           int     `json:"capacity"`
	Bedrooms           int     `json:"bedrooms"`
	Beds               int     `json:"beds"`
	Bathrooms          float32 `json:"bathrooms"`
	NightlyPrice       float64 `json:"nightlyPrice"`
	CleaningFee        float64 `json:"cleaningFee"`
	ServiceFee         float64 `json:"serviceFee"`
	TaxRate            float64 `json:"taxRate"` // fraction of base, e.g. 0.05
	Currency           string  `json:"currency" gorm:"type:varchar(3);default:'USD'"`
	Amenities          string  `json:"amenities"` // JSON array of strings
	HouseRules         string  `json:"houseRules" gorm:"type:text"`
	CancellationPolicy string  `json:"cancellationPolicy" gorm:"type:varchar(20);default:'moderate'"` // flexible, moderate, strict
	Images             string  `json:"images"`                                                        // JSON array of URLs
	IsActive           *bool   `json:"isActive"`
	Rating             float32 `json:"rating"`

	CheckInTime  string `json:"checkInTime" gorm:"column:check_in_time;type:varchar(10);default:'15:00'"`
	CheckOutTime string `json:"checkOutTime" gorm:"column:check_out_time;type:varchar(10);default:'11:00'"`
	BookingMode  string `json:"bookingMode" gorm:"type:varchar(20);default:'request'"` // instant, request

	NearbyAttractions datatypes.JSON `json:"nearbyAttractions" gorm:"column:nearby_attractions;type:jsonb"`

	Units    []PropertyUnit `json:"units" gorm:"foreignKey:PropertyID"`
	Bookings []Booking      `json:"bookings" gorm:"foreignKey:PropertyID"`
	Host     User           `json:"host" gorm:"foreignKey:HostID;references:ID"`
}

// Custom JSON marshaling to convert Images and Amenities strings to arrays
func (p *Property) MarshalJSON() ([]byte, error) {
	type Alias Property
	aux := &struct {
		Images    []string `json:"images"`
		Amenities []string `json:"amenities"`
		Host      *User    `json:"host,omitempty"`
		*Alias
	}{
		Images:    []string{},
		Amenities: []string{},
		Host:      nil,
		Alias:     (*Alias)(p),
	}

	// Parse the JSON string to array for Images
	if p.Images != "" {
		var images []string
		if err := json.Unmarshal([]byte(p.Images), &images); err == nil {
			aux.Images = images
		}
	}

	// Parse the JSON string to array for Amenities
	if p.Amenities != "" {
		var amenities []string
		if err := json.Unmarshal([]byte(p.Amenities), &amenities); err == nil {
			aux.Amenities = amenities
		}
	}

	// Only include host if it is loaded, without its Properties to avoid a
	// circular reference
	if p.Host.ID > 0 {
		hostCopy := p.Host
		hostCopy.Properties = nil
		aux.Host = &hostCopy
	}

	return json.Marshal(aux)
}

// PropertyUnit is an optional bookable sub-unit of a listing (a room in a
// guesthouse, a floor of a compound). A booking may reference one unit; a
// property with no units is booked whole.
type PropertyUnit struct {
	gorm.Model
	PropertyID   uint     `json:"propertyID" gorm:"not null;index"`
	Name         string   `json:"name" gorm:"size:128"`
	Capacity     int      `json:"capacity"`
	NightlyPrice *float64 `json:"nightlyPrice"` // overrides the listing price when set
	IsActive     *bool    `json:"isActive"`
}

// PropertyBlock is a host-blocked date range during which no booking may be
// placed, e.g. maintenance or personal use. End date is exclusive, matching
// booking check-out semantics.
type PropertyBlock struct {
	gorm.Model
	PropertyID    uint      `json:"propertyID" gorm:"not null;index"`
	StartDate     time.Time `json:"startDate" gorm:"not null"`
	EndDate       time.Time `json:"endDate" gorm:"not null"`
	Reason        string    `json:"reason"`
	IsMaintenance bool      `json:"isMaintenance" gorm:"default:false"`
}
