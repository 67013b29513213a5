package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"hoy-server/booking"
	"hoy-server/models"
	"hoy-server/storage"
)

// Sweeper applies the time-driven half of the booking lifecycle: pending
// requests expire once their response window lapses, confirmed stays become
// active at check-in, and active stays complete at check-out. It runs on a
// schedule but every pass is idempotent, so missed or doubled runs are
// harmless.
type Sweeper struct {
	DB       *gorm.DB
	Cache    *storage.Cache
	Events   *Events
	Notifier *Notifier

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

func NewSweeper(db *gorm.DB, cache *storage.Cache, events *Events, notifier *Notifier) *Sweeper {
	return &Sweeper{
		DB:       db,
		Cache:    cache,
		Events:   events,
		Notifier: notifier,
		Now:      time.Now,
	}
}

// Run executes one sweep. Errors are logged, not returned: the next tick
// retries everything that failed.
func (s *Sweeper) Run(ctx context.Context) {
	if n, err := s.ExpirePending(ctx); err != nil {
		log.Printf("sweeper: expire pending: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: expired %d pending booking(s)", n)
	}

	if n, err := s.AdvanceByClock(ctx); err != nil {
		log.Printf("sweeper: advance by clock: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: advanced %d booking(s)", n)
	}
}

// ExpirePending moves pending bookings past their response window to
// expired, frees their dates and tells the guest. The status guard in the
// update keeps a concurrent host confirmation from being overwritten.
func (s *Sweeper) ExpirePending(ctx context.Context) (int, error) {
	now := s.Now()

	var rows []models.Booking
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at < ?", booking.StatusPending, now).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	expired := 0
	for i := range rows {
		b := &rows[i]
		res := s.DB.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, booking.StatusPending).
			Update("status", booking.StatusExpired)
		if res.Error != nil {
			log.Printf("sweeper: expire booking %s: %v", b.Reference, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			// Confirmed or cancelled between select and update.
			continue
		}
		expired++
		b.Status = booking.StatusExpired

		if s.Cache != nil {
			s.Cache.InvalidateBookedDates(ctx, b.PropertyID)
		}
		s.Events.PublishBooking(EventBookingExpired, b)
		if s.Notifier != nil {
			title := s.propertyTitle(b.PropertyID)
			go s.Notifier.BookingExpired(b, title)
		}
	}
	return expired, nil
}

// AdvanceByClock applies due confirmed->active and active->completed
// transitions. A sweep that was down across a whole stay moves the booking
// through both hops at once.
func (s *Sweeper) AdvanceByClock(ctx context.Context) (int, error) {
	now := s.Now()

	var rows []models.Booking
	if err := s.DB.WithContext(ctx).
		Where("(status = ? AND check_in <= ?) OR (status = ? AND check_out <= ?)",
			booking.StatusConfirmed, now, booking.StatusActive, now).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	advanced := 0
	for i := range rows {
		b := &rows[i]

		next := b.Status
		for {
			n, due := booking.NextByClock(next, b.CheckIn, b.CheckOut, now)
			if !due {
				break
			}
			next = n
		}
		if next == b.Status {
			continue
		}

		res := s.DB.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, b.Status).
			Update("status", next)
		if res.Error != nil {
			log.Printf("sweeper: advance booking %s: %v", b.Reference, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		advanced++
		b.Status = next

		if next == booking.StatusCompleted {
			s.Events.PublishBooking(EventBookingCompleted, b)
			if s.Cache != nil {
				s.Cache.InvalidateBookedDates(ctx, b.PropertyID)
			}
		}
	}
	return advanced, nil
}

func (s *Sweeper) propertyTitle(propertyID uint) string {
	var p models.Property
	if err := s.DB.Select("id, title").First(&p, propertyID).Error; err != nil {
		return "your stay"
	}
	return p.Title
}
