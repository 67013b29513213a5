// Package booking holds the derived-value and lifecycle rules every surface
// of the server (handlers, the sweeper, payments) agrees on: night counts,
// quote arithmetic, guest-count rules and the status state machine. It is
// pure computation; persistence and transport live with the callers.
//
// The client apps ship a mirror of this calculator for instant UI feedback,
// but the values computed here are the authoritative ones.
package booking

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Calculator computes derived booking values. Invalid input never panics or
// returns an error: screens must always have something to render, so the
// calculator degrades to zero values and reports through its logger instead.
type Calculator struct {
	log *log.Logger
}

// NewCalculator returns a Calculator that reports degraded input through l.
func NewCalculator(l *log.Logger) *Calculator {
	if l == nil {
		l = log.Default()
	}
	return &Calculator{log: l}
}

// Nights returns the number of nights between check-in and check-out,
// rounding partial days up. It returns 0 when either date is missing or the
// range is inverted or empty.
func (c *Calculator) Nights(checkIn, checkOut time.Time) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		c.log.Printf("booking: nights requested with missing dates (checkIn=%v checkOut=%v)", checkIn, checkOut)
		return 0
	}
	if !checkIn.Before(checkOut) {
		c.log.Printf("booking: nights requested with non-positive range %s .. %s", checkIn.Format(time.RFC3339), checkOut.Format(time.RFC3339))
		return 0
	}
	d := checkOut.Sub(checkIn)
	nights := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		nights++
	}
	return nights
}

// ValidDates reports whether both dates are present and check-in strictly
// precedes check-out.
func (c *Calculator) ValidDates(checkIn, checkOut time.Time) bool {
	return !checkIn.IsZero() && !checkOut.IsZero() && checkIn.Before(checkOut)
}

// Fees are the per-stay charges added on top of the nightly price.
type Fees struct {
	CleaningFee float64 `json:"cleaningFee"`
	ServiceFee  float64 `json:"serviceFee"`
	Taxes       float64 `json:"taxes"`
}

// PriceDetails is the derived price breakdown for a stay. It is computed on
// demand and never persisted on its own; the booking row keeps only the
// resulting total.
type PriceDetails struct {
	BasePerNight float64 `json:"basePerNight"`
	Nights       int     `json:"nights"`
	CleaningFee  float64 `json:"cleaningFee"`
	ServiceFee   float64 `json:"serviceFee"`
	Taxes        float64 `json:"taxes"`
	Total        float64 `json:"total"`
}

// Quote prices a stay of the given length. Negative components are treated
// as zero so the total can never be negative. Total is always
// basePerNight*nights + cleaning + service + taxes.
func (c *Calculator) Quote(basePerNight float64, nights int, fees Fees) PriceDetails {
	if basePerNight < 0 || nights < 0 || fees.CleaningFee < 0 || fees.ServiceFee < 0 || fees.Taxes < 0 {
		c.log.Printf("booking: quote with negative components clamped (base=%.2f nights=%d fees=%+v)", basePerNight, nights, fees)
	}
	basePerNight = clamp(basePerNight)
	if nights < 0 {
		nights = 0
	}
	d := PriceDetails{
		BasePerNight: basePerNight,
		Nights:       nights,
		CleaningFee:  clamp(fees.CleaningFee),
		ServiceFee:   clamp(fees.ServiceFee),
		Taxes:        clamp(fees.Taxes),
	}
	d.Total = basePerNight*float64(nights) + d.CleaningFee + d.ServiceFee + d.Taxes
	return d
}

// QuoteStay is Quote over a date range, using the same night counting as
// Nights. An invalid range yields a zero-night quote holding only the fees
// already guaranteed non-negative.
func (c *Calculator) QuoteStay(basePerNight float64, checkIn, checkOut time.Time, fees Fees) PriceDetails {
	return c.Quote(basePerNight, c.Nights(checkIn, checkOut), fees)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Guests is the per-category guest count attached to a booking request.
type Guests struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
	Pets     int `json:"pets"`
}

// Count is the number of occupancy-counting guests (adults and children).
// Infants and pets do not count toward property capacity.
func (g Guests) Count() int {
	return g.Adults + g.Children
}

// Valid reports whether the party satisfies the minimum occupancy rule of
// at least one adult or child.
func (g Guests) Valid() bool {
	return g.Count() >= 1
}

// Summary renders the party the way booking screens show it, e.g.
// "2 adults, 1 child". Categories appear in the fixed order adults,
// children, infants, pets, and zero categories are omitted. An empty party
// yields an empty string.
func (g Guests) Summary() string {
	parts := make([]string, 0, 4)
	add := func(n int, singular, plural string) {
		if n <= 0 {
			return
		}
		if n == 1 {
			parts = append(parts, fmt.Sprintf("1 %s", singular))
			return
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, plural))
	}
	add(g.Adults, "adult", "adults")
	add(g.Children, "child", "children")
	add(g.Infants, "infant", "infants")
	add(g.Pets, "pet", "pets")
	return strings.Join(parts, ", ")
}
