package routes

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"hoy-server/booking"
	"hoy-server/models"
	"hoy-server/services"
	"hoy-server/storage"
	"hoy-server/utils"
)

// Hosts get this long to answer a booking request before it expires.
const bookingHoldWindow = 24 * time.Hour

// conflictStatuses are the statuses that make dates unavailable. Pending
// requests do not hold dates, they only hold the host's attention.
var conflictStatuses = []booking.Status{booking.StatusConfirmed, booking.StatusActive}

// Bookings serves the reservation lifecycle endpoints.
type Bookings struct {
	DB       *gorm.DB
	Calc     *booking.Calculator
	Cache    *storage.Cache
	Events   *services.Events
	Notifier *services.Notifier
	Mailer   *services.Mailer
	Sweeper  *services.Sweeper
}

func NewBookings(db *gorm.DB, calc *booking.Calculator, cache *storage.Cache, events *services.Events, notifier *services.Notifier, mailer *services.Mailer, sweeper *services.Sweeper) *Bookings {
	return &Bookings{DB: db, Calc: calc, Cache: cache, Events: events, Notifier: notifier, Mailer: mailer, Sweeper: sweeper}
}

type CreateBookingInput struct {
	CheckIn         time.Time `json:"checkIn" validate:"required"`
	CheckOut        time.Time `json:"checkOut" validate:"required"`
	Adults          int       `json:"adults" validate:"required,gte=1,lte=16"`
	Children        int       `json:"children" validate:"gte=0,lte=16"`
	Infants         int       `json:"infants" validate:"gte=0,lte=16"`
	Pets            int       `json:"pets" validate:"gte=0,lte=8"`
	UnitID          *uint     `json:"unitID"`
	SpecialRequests string    `json:"specialRequests" validate:"lt=2000"`
	ContactName     string    `json:"contactName" validate:"max=256"`
	ContactEmail    string    `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone    string    `json:"contactPhone"`
	PaymentType     string    `json:"paymentType" validate:"omitempty,oneof=zaad card cash"`
}

// Create books a stay on a property. Request-mode listings start pending and
// wait for the host; instant-mode listings confirm immediately. Retried
// requests carrying the same Idempotency-Key return the original booking.
func (r *Bookings) Create(ctx iris.Context) {
	propertyID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateBookingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !r.Calc.ValidDates(input.CheckIn, input.CheckOut) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkIn must be before checkOut", ctx)
		return
	}

	guests := booking.Guests{Adults: input.Adults, Children: input.Children, Infants: input.Infants, Pets: input.Pets}
	if !guests.Valid() {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "at least one adult or child is required", ctx)
		return
	}

	if input.ContactPhone != "" {
		if !utils.ValidatePhoneNumber(input.ContactPhone) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid phone number. Somaliland mobile numbers are 9 digits starting with 6.", ctx)
			return
		}
		input.ContactPhone = utils.NormalizePhoneNumber(input.ContactPhone)
	}

	var property models.Property
	if err := r.DB.First(&property, propertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.IsActive != nil && !*property.IsActive {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "This property is not accepting bookings", ctx)
		return
	}

	var unit *models.PropertyUnit
	if input.UnitID != nil {
		var u models.PropertyUnit
		if err := r.DB.Where("id = ? AND property_id = ?", *input.UnitID, property.ID).First(&u).Error; err != nil {
			utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found for this property", ctx)
			return
		}
		if u.IsActive != nil && !*u.IsActive {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "This unit is not accepting bookings", ctx)
			return
		}
		unit = &u
	}

	capacity := property.Capacity
	if unit != nil && unit.Capacity > 0 {
		capacity = unit.Capacity
	}
	if capacity > 0 && guests.Count() > capacity {
		utils.CreateError(iris.StatusBadRequest, "Validation Error",
			fmt.Sprintf("This listing sleeps at most %d guests", capacity), ctx)
		return
	}

	conflicts, blocked := r.countConflicts(property.ID, input.UnitID, input.CheckIn, input.CheckOut, 0)
	if conflicts > 0 || blocked > 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"ok":        false,
			"conflicts": conflicts,
			"blocked":   blocked,
			"message":   "Selected dates are not available",
		})
		return
	}

	var guest models.User
	if err := r.DB.First(&guest, claims.ID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	reference := newBookingReference()

	// A retried request with the same key gets the booking the first
	// attempt created instead of a second row.
	idemKey := ctx.GetHeader("Idempotency-Key")
	idemClaimed := false
	if idemKey != "" && r.Cache != nil {
		claimed, existingRef, err := r.Cache.ClaimIdempotencyKey(ctx, idemKey, reference)
		if err != nil {
			log.Printf("bookings: idempotency claim failed, continuing without: %v", err)
		} else if !claimed {
			var existing models.Booking
			if err := r.DB.Preload("Property").Preload("Guest").Where("reference = ?", existingRef).First(&existing).Error; err == nil {
				ctx.JSON(existing)
				return
			}
			// Claimed key but no row: the first attempt failed after
			// claiming, let this one book.
		} else {
			idemClaimed = true
		}
	}

	nights := r.Calc.Nights(input.CheckIn, input.CheckOut)
	price := property.NightlyPrice
	if unit != nil && unit.NightlyPrice != nil {
		price = *unit.NightlyPrice
	}
	taxes := property.TaxRate * price * float64(nights)
	details := r.Calc.Quote(price, nights, booking.Fees{
		CleaningFee: property.CleaningFee,
		ServiceFee:  property.ServiceFee,
		Taxes:       taxes,
	})

	status := booking.StatusPending
	if property.BookingMode == "instant" {
		status = booking.StatusConfirmed
	}

	paymentType := input.PaymentType
	if paymentType == "" {
		paymentType = "zaad"
	}
	contactName := input.ContactName
	if contactName == "" {
		contactName = fmt.Sprintf("%s %s", guest.FirstName, guest.LastName)
	}
	contactEmail := input.ContactEmail
	if contactEmail == "" {
		contactEmail = guest.Email
	}
	contactPhone := input.ContactPhone
	if contactPhone == "" {
		contactPhone = guest.PhoneNumber
	}

	b := models.Booking{
		Reference:       reference,
		PropertyID:      property.ID,
		UnitID:          input.UnitID,
		GuestID:         claims.ID,
		CheckIn:         input.CheckIn,
		CheckOut:        input.CheckOut,
		Adults:          input.Adults,
		Children:        input.Children,
		Infants:         input.Infants,
		Pets:            input.Pets,
		TotalPrice:      details.Total,
		Currency:        property.Currency,
		SpecialRequests: input.SpecialRequests,
		ContactName:     contactName,
		ContactEmail:    contactEmail,
		ContactPhone:    contactPhone,
		PaymentType:     paymentType,
		PaymentStatus:   "pending",
		Status:          status,
		ExpiresAt:       time.Now().Add(bookingHoldWindow),
	}

	if err := r.DB.Create(&b).Error; err != nil {
		if idemClaimed {
			r.Cache.ReleaseIdempotencyKey(ctx, idemKey)
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	r.DB.Preload("Property").Preload("Guest").Preload("Unit").First(&b, b.ID)

	if r.Cache != nil {
		r.Cache.InvalidateBookedDates(ctx, property.ID)
	}
	r.Events.PublishBooking(services.EventBookingCreated, &b)
	if b.Status == booking.StatusConfirmed {
		r.Events.PublishBooking(services.EventBookingConfirmed, &b)
	}

	if r.Notifier != nil {
		guestName := fmt.Sprintf("%s %s", guest.FirstName, guest.LastName)
		go r.Notifier.BookingRequested(&b, guestName, property.Title, property.HostID)
		if b.Status == booking.StatusConfirmed {
			var host models.User
			hostName := "the host"
			if err := r.DB.First(&host, property.HostID).Error; err == nil {
				hostName = fmt.Sprintf("%s %s", host.FirstName, host.LastName)
			}
			go r.Notifier.BookingConfirmed(&b, hostName, property.Title)
		}
	}
	if r.Mailer != nil && b.Status == booking.StatusConfirmed && b.ContactEmail != "" {
		bb := b
		go func() {
			if err := r.Mailer.BookingConfirmation(&bb, bb.ContactEmail, property.Title); err != nil {
				log.Printf("bookings: confirmation mail for %s: %v", bb.Reference, err)
			}
		}()
	}

	ctx.JSON(b)
}

// ListByUser returns a guest's bookings, newest first.
func (r *Bookings) ListByUser(ctx iris.Context) {
	userID := ctx.Params().Get("id")

	var bookings []models.Booking
	res := r.DB.Preload("Property").Preload("Property.Host").Preload("Unit").
		Where("guest_id = ?", userID).Order("created_at DESC").Find(&bookings)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(bookings)
}

// ListByHost returns bookings across every property the caller hosts.
func (r *Bookings) ListByHost(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var bookings []models.Booking
	res := r.DB.
		Joins("JOIN properties p ON p.id = bookings.property_id").
		Where("p.host_id = ?", claims.ID).
		Preload("Property").
		Preload("Guest").
		Preload("Unit").
		Order("bookings.created_at DESC").
		Find(&bookings)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(bookings)
}

// ListByProperty returns a single property's bookings to its host.
func (r *Bookings) ListByProperty(ctx iris.Context) {
	propertyID := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var property models.Property
	if err := r.DB.First(&property, propertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}
	if property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	var bookings []models.Booking
	res := r.DB.Preload("Guest").Preload("Unit").
		Where("property_id = ?", propertyID).Order("created_at DESC").Find(&bookings)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetByID returns one booking to its guest or to the property's host.
func (r *Bookings) GetByID(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var b models.Booking
	if err := r.DB.Preload("Property").Preload("Property.Host").Preload("Guest").Preload("Unit").First(&b, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	isGuest := b.GuestID == claims.ID
	isHost := b.Property != nil && b.Property.HostID == claims.ID
	if !isGuest && !isHost {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(b)
}

type UpdateBookingStatusInput struct {
	Status string `json:"status" validate:"required,oneof=confirmed rejected cancelled"`
}

// UpdateStatus lets the host answer a booking request. A rejection is a
// cancellation from the state machine's point of view. Requests whose hold
// window already lapsed expire instead of moving.
func (r *Bookings) UpdateStatus(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input UpdateBookingStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var b models.Booking
	if err := r.DB.Preload("Property").Preload("Guest").First(&b, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if b.Property == nil || b.Property.HostID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	if b.Status == booking.StatusPending && time.Now().After(b.ExpiresAt) {
		if r.transition(ctx, &b, booking.StatusExpired, nil) {
			r.Events.PublishBooking(services.EventBookingExpired, &b)
			if r.Notifier != nil {
				go r.Notifier.BookingExpired(&b, b.Property.Title)
			}
		}
		ctx.JSON(b)
		return
	}

	target := booking.StatusConfirmed
	if input.Status != "confirmed" {
		target = booking.StatusCancelled
	}
	if !booking.CanTransition(b.Status, target) {
		utils.CreateError(iris.StatusBadRequest, "Status Error",
			fmt.Sprintf("a %s booking cannot move to %s", b.Status, target), ctx)
		return
	}

	if target == booking.StatusConfirmed {
		// The dates may have been taken while this request sat pending.
		conflicts, blocked := r.countConflicts(b.PropertyID, b.UnitID, b.CheckIn, b.CheckOut, b.ID)
		if conflicts > 0 || blocked > 0 {
			ctx.StatusCode(iris.StatusConflict)
			ctx.JSON(iris.Map{
				"ok":        false,
				"conflicts": conflicts,
				"blocked":   blocked,
				"message":   "Selected dates are no longer available",
			})
			return
		}
	}

	if !r.transition(ctx, &b, target, nil) {
		return
	}

	var host models.User
	byName := "the host"
	if err := r.DB.First(&host, claims.ID).Error; err == nil {
		byName = fmt.Sprintf("%s %s", host.FirstName, host.LastName)
	}

	switch target {
	case booking.StatusConfirmed:
		r.Events.PublishBooking(services.EventBookingConfirmed, &b)
		if r.Notifier != nil {
			go r.Notifier.BookingConfirmed(&b, byName, b.Property.Title)
		}
		if r.Mailer != nil && b.ContactEmail != "" {
			bb := b
			title := b.Property.Title
			go func() {
				if err := r.Mailer.BookingConfirmation(&bb, bb.ContactEmail, title); err != nil {
					log.Printf("bookings: confirmation mail for %s: %v", bb.Reference, err)
				}
			}()
		}
	case booking.StatusCancelled:
		r.Events.PublishBooking(services.EventBookingCancelled, &b)
		if r.Notifier != nil {
			go r.Notifier.BookingCancelled(&b, b.GuestID, byName, b.Property.Title)
		}
	}

	ctx.JSON(b)
}

// Cancel lets the guest cancel a pending or confirmed booking. The refund
// follows the property's cancellation policy; the state change does not
// depend on it.
func (r *Bookings) Cancel(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid booking ID"})
		return
	}

	var b models.Booking
	if err := r.DB.Preload("Property").Where("id = ? AND guest_id = ?", bookingID, userID).First(&b).Error; err != nil {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "Booking not found"})
		return
	}

	if b.Status == booking.StatusCancelled {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Booking is already cancelled"})
		return
	}
	if !booking.CanTransition(b.Status, booking.StatusCancelled) {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": fmt.Sprintf("Cannot cancel a %s booking", b.Status)})
		return
	}

	refund, reason := cancellationRefund(&b, time.Now())

	extra := map[string]interface{}{}
	if refund > 0 {
		extra["payment_status"] = "refunded"
	}
	if !r.transition(ctx, &b, booking.StatusCancelled, extra) {
		return
	}

	r.Events.PublishBooking(services.EventBookingCancelled, &b)
	if r.Notifier != nil && b.Property != nil {
		byName := b.ContactName
		if byName == "" {
			byName = "the guest"
		}
		go r.Notifier.BookingCancelled(&b, b.Property.HostID, byName, b.Property.Title)
	}
	if r.Mailer != nil && b.ContactEmail != "" && b.Property != nil {
		bb := b
		title := b.Property.Title
		go func() {
			if err := r.Mailer.BookingCancellation(&bb, bb.ContactEmail, title, refund); err != nil {
				log.Printf("bookings: cancellation mail for %s: %v", bb.Reference, err)
			}
		}()
	}

	ctx.JSON(iris.Map{
		"message":       "Booking cancelled successfully",
		"refund_amount": refund,
		"currency":      b.Currency,
		"reason":        reason,
	})
}

type ValidateAvailabilityInput struct {
	CheckIn  time.Time `json:"checkIn" validate:"required"`
	CheckOut time.Time `json:"checkOut" validate:"required"`
	UnitID   *uint     `json:"unitID"`
}

// Validate checks for conflicts before the client attempts to book.
func (r *Bookings) Validate(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid property ID"})
		return
	}

	var input ValidateAvailabilityInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !r.Calc.ValidDates(input.CheckIn, input.CheckOut) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkIn must be before checkOut", ctx)
		return
	}

	conflicts, blocked := r.countConflicts(propertyID, input.UnitID, input.CheckIn, input.CheckOut, 0)
	if conflicts > 0 || blocked > 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"ok":        false,
			"conflicts": conflicts,
			"blocked":   blocked,
			"message":   "Selected dates are not available",
		})
		return
	}

	ctx.JSON(iris.Map{"ok": true})
}

type QuoteInput struct {
	PropertyID uint      `json:"propertyID" validate:"required"`
	UnitID     *uint     `json:"unitID"`
	CheckIn    time.Time `json:"checkIn" validate:"required"`
	CheckOut   time.Time `json:"checkOut" validate:"required"`
}

// Quote prices a stay without booking it. The client shows its own estimate
// while typing; this endpoint is the figure that actually gets charged.
func (r *Bookings) Quote(ctx iris.Context) {
	var input QuoteInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !r.Calc.ValidDates(input.CheckIn, input.CheckOut) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkIn must be before checkOut", ctx)
		return
	}

	var property models.Property
	if err := r.DB.First(&property, input.PropertyID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Property not found", ctx)
		return
	}

	price := property.NightlyPrice
	if input.UnitID != nil {
		var unit models.PropertyUnit
		if err := r.DB.Where("id = ? AND property_id = ?", *input.UnitID, property.ID).First(&unit).Error; err != nil {
			utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found for this property", ctx)
			return
		}
		if unit.NightlyPrice != nil {
			price = *unit.NightlyPrice
		}
	}

	nights := r.Calc.Nights(input.CheckIn, input.CheckOut)
	taxes := property.TaxRate * price * float64(nights)
	details := r.Calc.Quote(price, nights, booking.Fees{
		CleaningFee: property.CleaningFee,
		ServiceFee:  property.ServiceFee,
		Taxes:       taxes,
	})

	ctx.JSON(iris.Map{
		"success": true,
		"data": struct {
			booking.PriceDetails
			Currency string `json:"currency"`
		}{details, property.Currency},
	})
}

// BookedDates returns the date ranges a property's calendar should grey out:
// confirmed or active stays plus host blocks. Cached in Redis.
func (r *Bookings) BookedDates(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid property ID"})
		return
	}

	if r.Cache != nil {
		if ranges, ok := r.Cache.BookedDates(ctx, propertyID); ok {
			ctx.JSON(iris.Map{"success": true, "data": ranges})
			return
		}
	}

	now := time.Now()

	var bookings []models.Booking
	if err := r.DB.Where("property_id = ? AND status IN ? AND check_out > ?", propertyID, conflictStatuses, now).
		Order("check_in ASC").Find(&bookings).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	var blocks []models.PropertyBlock
	if err := r.DB.Where("property_id = ? AND end_date > ?", propertyID, now).
		Order("start_date ASC").Find(&blocks).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	ranges := make([]storage.DateRange, 0, len(bookings)+len(blocks))
	for _, b := range bookings {
		ranges = append(ranges, storage.DateRange{Start: b.CheckIn, End: b.CheckOut})
	}
	for _, bl := range blocks {
		ranges = append(ranges, storage.DateRange{Start: bl.StartDate, End: bl.EndDate})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })

	if r.Cache != nil {
		r.Cache.SetBookedDates(ctx, propertyID, ranges)
	}

	ctx.JSON(iris.Map{"success": true, "data": ranges})
}

// ExpirePending sweeps pending bookings whose hold window lapsed. The gocron
// job does this on a schedule; the endpoint exists for external schedulers
// and operators.
func (r *Bookings) ExpirePending(ctx iris.Context) {
	n, err := r.Sweeper.ExpirePending(ctx)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"ok": true, "expired": n})
}

// countConflicts counts bookings and host blocks overlapping [checkIn,
// checkOut). Check-out day does not collide with a same-day check-in. A
// property-wide booking collides with every unit; excludeID leaves the
// booking being re-validated out of its own way.
func (r *Bookings) countConflicts(propertyID uint, unitID *uint, checkIn, checkOut time.Time, excludeID uint) (int64, int64) {
	q := r.DB.Model(&models.Booking{}).
		Where("property_id = ? AND status IN ? AND check_in < ? AND check_out > ?",
			propertyID, conflictStatuses, checkOut, checkIn)
	if unitID != nil {
		q = q.Where("unit_id = ? OR unit_id IS NULL", *unitID)
	}
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var conflicts int64
	q.Count(&conflicts)

	var blocked int64
	r.DB.Model(&models.PropertyBlock{}).
		Where("property_id = ? AND start_date < ? AND end_date > ?", propertyID, checkOut, checkIn).
		Count(&blocked)

	return conflicts, blocked
}

// transition applies a guarded status update. The status guard in the WHERE
// clause loses gracefully to concurrent writers; the caller's loaded row is
// updated in place on success.
func (r *Bookings) transition(ctx iris.Context, b *models.Booking, target booking.Status, extra map[string]interface{}) bool {
	updates := map[string]interface{}{"status": target}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Updates(updates)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return false
	}
	if res.RowsAffected == 0 {
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{"message": "Booking was updated by someone else, reload and retry"})
		return false
	}

	b.Status = target
	if ps, ok := updates["payment_status"].(string); ok {
		b.PaymentStatus = ps
	}
	if r.Cache != nil {
		r.Cache.InvalidateBookedDates(ctx, b.PropertyID)
	}
	return true
}

// cancellationRefund applies the property's cancellation policy. Unpaid
// bookings have nothing to refund.
func cancellationRefund(b *models.Booking, now time.Time) (float64, string) {
	if b.PaymentStatus != "paid" {
		return 0, "No payment was taken for this booking"
	}

	policy := "moderate"
	if b.Property != nil && b.Property.CancellationPolicy != "" {
		policy = b.Property.CancellationPolicy
	}

	daysUntilCheckIn := int(b.CheckIn.Sub(now).Hours() / 24)

	switch policy {
	case "flexible":
		if daysUntilCheckIn >= 1 {
			return b.TotalPrice, "Full refund - cancelled 24+ hours before check-in"
		}
		return 0, "No refund - cancelled less than 24 hours before check-in"

	case "strict":
		if daysUntilCheckIn >= 7 {
			return b.TotalPrice * 0.5, "50% refund - cancelled 7+ days before check-in"
		}
		return 0, "No refund - cancelled less than 7 days before check-in"

	default: // moderate
		if daysUntilCheckIn >= 5 {
			return b.TotalPrice, "Full refund - cancelled 5+ days before check-in"
		}
		if daysUntilCheckIn >= 1 {
			return b.TotalPrice * 0.5, "50% refund - cancelled 1-4 days before check-in"
		}
		return 0, "No refund - cancelled less than 24 hours before check-in"
	}
}

func newBookingReference() string {
	return "HOY-" + strings.ToUpper(utils.GenerateShortToken(4))
}
