package services

import (
	"fmt"
	"log"
	"time"

	"github.com/wneessen/go-mail"

	"hoy-server/models"
)

// Mailer sends transactional booking emails over SMTP. A nil *Mailer is
// valid and skips sending, for deployments without SMTP configured.
type Mailer struct {
	client *mail.Client
	from   string
}

// NewMailer builds the SMTP client. Returns nil when host is empty.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	if host == "" {
		return nil
	}
	c, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
	)
	if err != nil {
		log.Printf("mailer: could not initialize smtp client: %s", err.Error())
		return nil
	}
	return &Mailer{client: c, from: from}
}

func (m *Mailer) send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat("Hoy", m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// BookingConfirmation mails the guest the confirmed stay summary.
func (m *Mailer) BookingConfirmation(b *models.Booking, to, propertyTitle string) error {
	subject := fmt.Sprintf("Booking confirmed: %s", propertyTitle)
	body := fmt.Sprintf(
		"Your booking %s is confirmed.\n\n%s\n%s to %s\n%s\nTotal: %.2f %s\n\nSee you soon!",
		b.Reference,
		propertyTitle,
		b.CheckIn.Format("Mon, 2 Jan 2006"),
		b.CheckOut.Format("Mon, 2 Jan 2006"),
		b.Guests().Summary(),
		b.TotalPrice,
		b.Currency,
	)
	return m.send(to, subject, body)
}

// BookingCancellation mails the guest the cancellation and any refund due.
func (m *Mailer) BookingCancellation(b *models.Booking, to, propertyTitle string, refund float64) error {
	subject := fmt.Sprintf("Booking cancelled: %s", propertyTitle)
	body := fmt.Sprintf(
		"Your booking %s for %s has been cancelled.",
		b.Reference,
		propertyTitle,
	)
	if refund > 0 {
		body += fmt.Sprintf("\n\nA refund of %.2f %s is on its way.", refund, b.Currency)
	}
	return m.send(to, subject, body)
}

// BookingReminder mails the guest ahead of check-in.
func (m *Mailer) BookingReminder(b *models.Booking, to, propertyTitle string) error {
	days := int(time.Until(b.CheckIn).Hours() / 24)
	subject := fmt.Sprintf("Upcoming stay: %s", propertyTitle)
	body := fmt.Sprintf(
		"Your stay at %s starts in %d day(s), on %s. Booking reference: %s.",
		propertyTitle,
		days,
		b.CheckIn.Format("Mon, 2 Jan 2006"),
		b.Reference,
	)
	return m.send(to, subject, body)
}
