package config

import (
	"os"
	"strconv"
	"strings"
)

// Config carries every environment-derived setting. It is loaded once in
// main and handed to collaborators; nothing else reads os.Getenv.
type Config struct {
	HTTPAddr    string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string

	AccessTokenSecret  string
	RefreshTokenSecret string

	GoogleJWKSURL string

	KafkaBrokers []string

	ZaadMerchantID string
	ZaadAPIKey     string
	ZaadBaseURL    string
	ZaadSecret     string

	StripeKey           string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	S3Bucket string
}

func Load() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":4000"),
		PostgresDSN: os.Getenv("DB_CONNECTION_STRING"),

		RedisAddr:     os.Getenv("REDIS_URL"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),

		GoogleJWKSURL: getenv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),

		ZaadMerchantID: os.Getenv("ZAAD_MERCHANT_ID"),
		ZaadAPIKey:     os.Getenv("ZAAD_API_KEY"),
		ZaadBaseURL:    getenv("ZAAD_BASE_URL", "https://api.zaad.net"),
		ZaadSecret:     os.Getenv("ZAAD_CALLBACK_SECRET"),

		StripeKey:           os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSuccessURL:    getenv("STRIPE_SUCCESS_URL", "https://hoy.app/payments/success"),
		StripeCancelURL:     getenv("STRIPE_CANCEL_URL", "https://hoy.app/payments/cancel"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getenv("MAIL_FROM", "no-reply@hoy.app"),

		S3Bucket: os.Getenv("S3_MEDIA_BUCKET"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
