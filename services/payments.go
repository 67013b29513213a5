package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"hoy-server/models"
	"hoy-server/utils"
)

// PaymentIntent is the provider-side handle for a charge in flight. URL is
// set for redirect flows (card checkout); ZAAD pushes an approval prompt to
// the payer's phone instead.
type PaymentIntent struct {
	Provider string `json:"provider"`
	Ref      string `json:"ref"`
	URL      string `json:"url,omitempty"`
}

// PaymentProvider starts a charge for a booking. The provider decides the
// eventual payment status; bookings only react to the callback/webhook.
type PaymentProvider interface {
	InitiateCharge(ctx context.Context, b *models.Booking, description string) (*PaymentIntent, error)
}

// ---- ZAAD (mobile money) ----

// ZaadClient talks to the ZAAD merchant API. Charges are push requests: the
// payer approves on their phone and ZAAD reports the outcome to our callback
// endpoint, signed with the shared callback secret.
type ZaadClient struct {
	MerchantID     string
	APIKey         string
	BaseURL        string
	CallbackSecret string

	HTTPClient *http.Client
}

// NewZaadClient returns nil when the merchant credentials are absent; a nil
// client makes the zaad payment type unavailable.
func NewZaadClient(merchantID, apiKey, baseURL, callbackSecret string) *ZaadClient {
	if merchantID == "" || apiKey == "" {
		return nil
	}
	return &ZaadClient{
		MerchantID:     merchantID,
		APIKey:         apiKey,
		BaseURL:        baseURL,
		CallbackSecret: callbackSecret,
		HTTPClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

type zaadChargeRequest struct {
	MerchantID  string  `json:"merchant_id"`
	Phone       string  `json:"phone"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Reference   string  `json:"reference"`
	Description string  `json:"description"`
}

type zaadChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

func (z *ZaadClient) InitiateCharge(ctx context.Context, b *models.Booking, description string) (*PaymentIntent, error) {
	if z == nil {
		return nil, fmt.Errorf("zaad payments are not configured")
	}

	body, err := json.Marshal(zaadChargeRequest{
		MerchantID:  z.MerchantID,
		Phone:       utils.NormalizePhoneNumber(b.ContactPhone),
		Amount:      b.TotalPrice,
		Currency:    b.Currency,
		Reference:   b.Reference,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("zaad: marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("zaad: build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+z.APIKey)

	res, err := z.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zaad: charge request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("zaad: read charge response: %w", err)
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("zaad: charge returned %d: %s", res.StatusCode, raw)
	}

	var out zaadChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("zaad: parse charge response: %w", err)
	}
	if out.TransactionID == "" {
		return nil, fmt.Errorf("zaad: charge rejected: %s", out.Message)
	}

	log.Printf("zaad: charge %s initiated for booking %s", out.TransactionID, b.Reference)
	return &PaymentIntent{Provider: "zaad", Ref: out.TransactionID}, nil
}

// ZaadCallback is the payload ZAAD posts to our callback endpoint once the
// payer approved or declined.
type ZaadCallback struct {
	TransactionID string  `json:"transaction_id"`
	Reference     string  `json:"reference"`
	Status        string  `json:"status"` // success | failed
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// VerifyCallback checks the X-Zaad-Signature header, an HMAC-SHA256 of the
// raw body keyed with the shared callback secret.
func (z *ZaadClient) VerifyCallback(payload []byte, signature string) bool {
	if z == nil || z.CallbackSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(z.CallbackSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ---- Stripe (card) ----

// StripeProvider charges cards through a hosted Checkout Session. The
// session carries the booking reference in its metadata so the webhook can
// find the booking again.
type StripeProvider struct {
	Client     *stripe.Client
	SuccessURL string
	CancelURL  string
}

func NewStripeProvider(apiKey, successURL, cancelURL string) *StripeProvider {
	if apiKey == "" {
		return nil
	}
	return &StripeProvider{
		Client:     stripe.NewClient(apiKey),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	}
}

func (s *StripeProvider) InitiateCharge(ctx context.Context, b *models.Booking, description string) (*PaymentIntent, error) {
	if s == nil {
		return nil, fmt.Errorf("card payments are not configured")
	}

	params := stripe.CheckoutSessionCreateParams{
		SuccessURL: stripe.String(s.SuccessURL),
		CancelURL:  stripe.String(s.CancelURL),
		UIMode:     stripe.String("hosted"),
		Mode:       stripe.String("payment"),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(b.Currency),
					UnitAmount: stripe.Int64(int64(math.Round(b.TotalPrice * 100))),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"booking_reference": b.Reference,
		},
	}

	session, err := s.Client.V1CheckoutSessions.Create(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	log.Printf("stripe: checkout session %s created for booking %s", session.ID, b.Reference)
	return &PaymentIntent{Provider: "card", Ref: session.ID, URL: session.URL}, nil
}
