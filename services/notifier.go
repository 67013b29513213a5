package services

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hoy-server/models"
	"hoy-server/utils"
)

// Notifier fans booking and messaging events out to users: a durable
// Notification row first, then best-effort Expo push to every registered
// device token. Handlers call it in fire-and-forget goroutines.
type Notifier struct {
	DB *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{DB: db}
}

// NotificationData is the deep-link payload mirrored to the push message and
// stored on the notification row.
type NotificationData struct {
	Type      string `json:"type"`
	BookingID string `json:"bookingId,omitempty"`
	Property  string `json:"propertyId,omitempty"`
	Screen    string `json:"screen,omitempty"`
	Params    string `json:"params,omitempty"`
}

func (n *Notifier) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := n.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %v", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user has notifications disabled or no tokens")
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}
	return tokens, nil
}

// Send persists the notification and pushes it to the user's devices. The
// row is written even when push delivery is impossible, so the in-app list
// stays complete.
func (n *Notifier) Send(userID uint, title, body string, data NotificationData) error {
	raw, _ := json.Marshal(data)
	row := models.Notification{
		UserID: userID,
		Type:   data.Type,
		Title:  title,
		Body:   body,
		Data:   datatypes.JSON(raw),
	}
	if err := n.DB.Create(&row).Error; err != nil {
		log.Printf("notifier: failed to persist notification for user %d: %v", userID, err)
	}

	tokens, err := n.getUserPushTokens(userID)
	if err != nil {
		log.Printf("notifier: no push for user %d: %v", userID, err)
		return err
	}

	dataMap := map[string]string{
		"type":      data.Type,
		"bookingId": data.BookingID,
		"screen":    data.Screen,
		"params":    data.Params,
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendNotification(token, title, body, dataMap); err != nil {
			log.Printf("notifier: failed to send to token %s: %v", token, err)
			lastError = err
		}
	}
	return lastError
}

// BookingRequested notifies the host that a traveler asked for dates.
func (n *Notifier) BookingRequested(b *models.Booking, guestName, propertyTitle string, hostID uint) error {
	title := "🏠 New Booking Request!"
	body := fmt.Sprintf("%s requested %s for %s", guestName, b.Guests().Summary(), propertyTitle)

	params := fmt.Sprintf(`{"bookingId": %d, "propertyId": %d}`, b.ID, b.PropertyID)
	return n.Send(hostID, title, body, NotificationData{
		Type:      "booking_created",
		BookingID: fmt.Sprintf("%d", b.ID),
		Property:  fmt.Sprintf("%d", b.PropertyID),
		Screen:    "HostBookings",
		Params:    params,
	})
}

// BookingConfirmed notifies the guest their request was accepted.
func (n *Notifier) BookingConfirmed(b *models.Booking, hostName, propertyTitle string) error {
	title := "🎉 Booking Confirmed!"
	body := fmt.Sprintf("%s accepted your booking for %s", hostName, propertyTitle)

	params := fmt.Sprintf(`{"bookingId": %d, "propertyId": %d}`, b.ID, b.PropertyID)
	return n.Send(b.GuestID, title, body, NotificationData{
		Type:      "booking_confirmed",
		BookingID: fmt.Sprintf("%d", b.ID),
		Property:  fmt.Sprintf("%d", b.PropertyID),
		Screen:    "MyBookings",
		Params:    params,
	})
}

// BookingCancelled notifies the other party of a cancellation. recipient is
// the host when the guest cancelled, and vice versa.
func (n *Notifier) BookingCancelled(b *models.Booking, recipient uint, byName, propertyTitle string) error {
	title := "Booking Cancelled"
	body := fmt.Sprintf("%s cancelled the booking for %s", byName, propertyTitle)

	params := fmt.Sprintf(`{"bookingId": %d, "propertyId": %d}`, b.ID, b.PropertyID)
	return n.Send(recipient, title, body, NotificationData{
		Type:      "booking_cancelled",
		BookingID: fmt.Sprintf("%d", b.ID),
		Property:  fmt.Sprintf("%d", b.PropertyID),
		Screen:    "MyBookings",
		Params:    params,
	})
}

// BookingExpired tells the guest their request lapsed without a host
// response.
func (n *Notifier) BookingExpired(b *models.Booking, propertyTitle string) error {
	title := "Booking Request Expired"
	body := fmt.Sprintf("Your request for %s expired without a response. The dates are free again.", propertyTitle)

	return n.Send(b.GuestID, title, body, NotificationData{
		Type:      "booking_expired",
		BookingID: fmt.Sprintf("%d", b.ID),
		Screen:    "MyBookings",
	})
}

// MessageReceived notifies a user of a new chat message.
func (n *Notifier) MessageReceived(receiverID, senderID uint, senderName, preview string) error {
	title := "💬 New Message"
	body := fmt.Sprintf("%s: %s", senderName, preview)

	params := fmt.Sprintf(`{"senderId": %d}`, senderID)
	return n.Send(receiverID, title, body, NotificationData{
		Type:   "message_received",
		Screen: "Messages",
		Params: params,
	})
}

// Welcome greets a newly registered user.
func (n *Notifier) Welcome(userID uint, firstName string) error {
	title := "🎉 Welcome to Hoy!"
	body := fmt.Sprintf("Hi %s! Find your next stay across Somaliland.", firstName)

	return n.Send(userID, title, body, NotificationData{
		Type: "welcome",
	})
}
