package routes

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"hoy-server/booking"
	"hoy-server/models"
	"hoy-server/services"
	"hoy-server/storage"
	"hoy-server/utils"
)

// Payments starts charges and receives provider callbacks. Providers own the
// payment outcome; bookings only react to it, and a paid pending booking
// confirms through the usual guarded transition.
type Payments struct {
	DB     *gorm.DB
	Zaad   *services.ZaadClient
	Stripe *services.StripeProvider

	// WebhookSecret signs Stripe webhook payloads.
	WebhookSecret string

	Cache    *storage.Cache
	Events   *services.Events
	Notifier *services.Notifier
	Mailer   *services.Mailer
}

func NewPayments(db *gorm.DB, zaad *services.ZaadClient, stripeProvider *services.StripeProvider, webhookSecret string, cache *storage.Cache, events *services.Events, notifier *services.Notifier, mailer *services.Mailer) *Payments {
	return &Payments{
		DB:            db,
		Zaad:          zaad,
		Stripe:        stripeProvider,
		WebhookSecret: webhookSecret,
		Cache:         cache,
		Events:        events,
		Notifier:      notifier,
		Mailer:        mailer,
	}
}

type InitiatePaymentInput struct {
	Method string `json:"method" validate:"required,oneof=zaad card"`
}

// Initiate starts a charge for a booking the caller owns. ZAAD pushes an
// approval prompt to the payer's phone; card returns a hosted checkout URL.
func (r *Payments) Initiate(ctx iris.Context) {
	id := ctx.Params().Get("id")
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input InitiatePaymentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var b models.Booking
	if err := r.DB.Preload("Property").First(&b, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}
	if b.GuestID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
		utils.CreateError(iris.StatusBadRequest, "Payment Error",
			fmt.Sprintf("A %s booking cannot be paid", b.Status), ctx)
		return
	}
	if b.PaymentStatus == "paid" {
		utils.CreateError(iris.StatusBadRequest, "Payment Error", "Booking is already paid", ctx)
		return
	}

	title := "your stay"
	if b.Property != nil {
		title = b.Property.Title
	}
	description := fmt.Sprintf("%s (%s)", title, b.Reference)

	var intent *services.PaymentIntent
	var err error

	switch input.Method {
	case "zaad":
		if r.Zaad == nil {
			utils.CreateError(iris.StatusServiceUnavailable, "Unavailable", "ZAAD payments are not configured", ctx)
			return
		}
		if b.ContactPhone == "" {
			utils.CreateError(iris.StatusBadRequest, "Payment Error", "Booking has no contact phone for ZAAD", ctx)
			return
		}
		intent, err = r.Zaad.InitiateCharge(ctx, &b, description)

	case "card":
		if r.Stripe == nil {
			utils.CreateError(iris.StatusServiceUnavailable, "Unavailable", "Card payments are not configured", ctx)
			return
		}
		intent, err = r.Stripe.InitiateCharge(ctx, &b, description)
	}

	if err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Payment Error", err.Error(), ctx)
		return
	}

	updates := map[string]interface{}{
		"payment_type": input.Method,
		"payment_ref":  intent.Ref,
	}
	if err := r.DB.Model(&models.Booking{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "payment": intent})
}

// ZaadCallback receives ZAAD's signed payment outcome. The endpoint is
// public; the HMAC signature is the authentication.
func (r *Payments) ZaadCallback(ctx iris.Context) {
	body, err := ctx.GetBody()
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	signature := ctx.GetHeader("X-Zaad-Signature")
	if r.Zaad == nil || !r.Zaad.VerifyCallback(body, signature) {
		ctx.StopWithStatus(iris.StatusUnauthorized)
		return
	}

	var cb services.ZaadCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	var b models.Booking
	res := r.DB.Preload("Property").Where("reference = ?", cb.Reference).Limit(1).Find(&b)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		log.Printf("payments: zaad callback for unknown reference %s", cb.Reference)
		ctx.JSON(iris.Map{"ok": true})
		return
	}

	if cb.Status != "success" {
		if b.PaymentStatus != "paid" {
			r.DB.Model(&models.Booking{}).Where("id = ?", b.ID).
				Update("payment_status", "failed")
		}
		log.Printf("payments: zaad payment %s for booking %s: %s", cb.TransactionID, b.Reference, cb.Status)
		ctx.JSON(iris.Map{"ok": true})
		return
	}

	if err := r.applyPaid(ctx, &b, cb.TransactionID); err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"ok": true})
}

// StripeWebhook receives Stripe events. Only checkout.session.completed is
// acted on; everything else is acknowledged and dropped.
func (r *Payments) StripeWebhook(ctx iris.Context) {
	body, err := ctx.GetBody()
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(body, ctx.GetHeader("Stripe-Signature"), r.WebhookSecret)
	if err != nil {
		ctx.StopWithStatus(iris.StatusBadRequest)
		return
	}

	if event.Type == "checkout.session.completed" {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			ctx.StopWithStatus(iris.StatusBadRequest)
			return
		}

		reference := session.Metadata["booking_reference"]
		if reference == "" {
			log.Printf("payments: stripe session %s carries no booking reference", session.ID)
			ctx.JSON(iris.Map{"received": true})
			return
		}

		var b models.Booking
		res := r.DB.Preload("Property").Where("reference = ?", reference).Limit(1).Find(&b)
		if res.Error != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		if res.RowsAffected == 0 {
			log.Printf("payments: stripe session %s references unknown booking %s", session.ID, reference)
			ctx.JSON(iris.Map{"received": true})
			return
		}

		if err := r.applyPaid(ctx, &b, session.ID); err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(iris.Map{"received": true})
}

// applyPaid marks the booking paid and, when it was still pending, confirms
// it. Replayed callbacks are no-ops.
func (r *Payments) applyPaid(ctx iris.Context, b *models.Booking, paymentRef string) error {
	if b.PaymentStatus == "paid" {
		return nil
	}

	updates := map[string]interface{}{
		"payment_status": "paid",
		"payment_ref":    paymentRef,
	}
	if err := r.DB.Model(&models.Booking{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		return err
	}
	b.PaymentStatus = "paid"
	b.PaymentRef = paymentRef

	title := "your stay"
	if b.Property != nil {
		title = b.Property.Title
	}

	if b.Status == booking.StatusPending {
		res := r.DB.Model(&models.Booking{}).
			Where("id = ? AND status = ?", b.ID, booking.StatusPending).
			Update("status", booking.StatusConfirmed)
		if res.Error == nil && res.RowsAffected > 0 {
			b.Status = booking.StatusConfirmed
			if r.Cache != nil {
				r.Cache.InvalidateBookedDates(ctx, b.PropertyID)
			}
			r.Events.PublishBooking(services.EventBookingConfirmed, b)
			if r.Mailer != nil && b.ContactEmail != "" {
				bb := *b
				go func() {
					if err := r.Mailer.BookingConfirmation(&bb, bb.ContactEmail, title); err != nil {
						log.Printf("payments: confirmation mail for %s: %v", bb.Reference, err)
					}
				}()
			}
		}
	}

	if r.Notifier != nil {
		go r.Notifier.Send(b.GuestID, "Payment Received",
			fmt.Sprintf("Your payment for %s went through.", title),
			services.NotificationData{
				Type:      "payment_received",
				BookingID: fmt.Sprintf("%d", b.ID),
				Screen:    "MyBookings",
			})
		if b.Property != nil {
			go r.Notifier.Send(b.Property.HostID, "Payment Received",
				fmt.Sprintf("%s %.2f received for %s.", b.Currency, b.TotalPrice, title),
				services.NotificationData{
					Type:      "payment_received",
					BookingID: fmt.Sprintf("%d", b.ID),
					Screen:    "HostBookings",
				})
		}
	}

	return nil
}
