package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"hoy-server/booking"
	"hoy-server/models"
	"hoy-server/utils"
)

const testAccessSecret = "testsecret"

// buildBookingsTestApp wires the booking endpoints onto a minimal Iris app
// backed by a sqlmock database. Optional collaborators stay nil, as they
// would be on a box with no Redis or broker configured.
func buildBookingsTestApp(t *testing.T) (*iris.Application, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(testAccessSecret))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	h := NewBookings(db, booking.NewCalculator(nil), nil, nil, nil, nil, nil)

	api := app.Party("/api/booking", accessTokenVerifierMiddleware)
	{
		api.Post("/quote", h.Quote)
		api.Post("/property/{id}/validate", h.Validate)
	}
	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app, mock
}

func signTestToken(t *testing.T, id uint, role string) string {
	t.Helper()
	signer := jwt.NewSigner(jwt.HS256, []byte(testAccessSecret), 0)
	token, err := signer.Sign(utils.AccessToken{ID: id, Role: role})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(token)
}

func postJSON(t *testing.T, app *iris.Application, token, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func TestQuoteComputesTotal(t *testing.T) {
	app, mock := buildBookingsTestApp(t)
	token := signTestToken(t, 7, "user")

	propertyRows := sqlmock.NewRows([]string{"id", "host_id", "title", "nightly_price", "cleaning_fee", "service_fee", "tax_rate", "currency"}).
		AddRow(5, 2, "Maansoor Villa", 40.0, 15.0, 10.0, 0.05, "USD")
	mock.ExpectQuery(`SELECT \* FROM "properties" WHERE "properties"\."id" = \$1`).
		WillReturnRows(propertyRows)

	resp := postJSON(t, app, token, "/api/booking/quote",
		`{"propertyID":5,"checkIn":"2026-09-10T00:00:00Z","checkOut":"2026-09-13T00:00:00Z"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	body := resp.Body.String()
	if n := gjson.Get(body, "data.nights").Int(); n != 3 {
		t.Fatalf("expected 3 nights, got %d", n)
	}
	// 40*3 + 15 + 10 + 0.05*40*3 = 151
	if total := gjson.Get(body, "data.total").Float(); total != 151 {
		t.Fatalf("expected total 151, got %v", total)
	}
	if taxes := gjson.Get(body, "data.taxes").Float(); taxes != 6 {
		t.Fatalf("expected taxes 6, got %v", taxes)
	}
	if cur := gjson.Get(body, "data.currency").String(); cur != "USD" {
		t.Fatalf("expected currency USD, got %q", cur)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuoteRejectsInvertedDates(t *testing.T) {
	app, _ := buildBookingsTestApp(t)
	token := signTestToken(t, 7, "user")

	resp := postJSON(t, app, token, "/api/booking/quote",
		`{"propertyID":5,"checkIn":"2026-09-13T00:00:00Z","checkOut":"2026-09-10T00:00:00Z"}`)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted dates, got %d", resp.Code)
	}
}

func TestValidateReportsConflicts(t *testing.T) {
	app, mock := buildBookingsTestApp(t)
	token := signTestToken(t, 7, "user")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings" WHERE \(?property_id = \$1 AND status IN \(\$2,\$3\) AND check_in < \$4 AND check_out > \$5`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "property_blocks" WHERE \(?property_id = \$1 AND start_date < \$2 AND end_date > \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	resp := postJSON(t, app, token, "/api/booking/property/5/validate",
		`{"checkIn":"2026-09-10T00:00:00Z","checkOut":"2026-09-13T00:00:00Z"}`)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 when dates are taken, got %d: %s", resp.Code, resp.Body.String())
	}

	body := resp.Body.String()
	if ok := gjson.Get(body, "ok").Bool(); ok {
		t.Fatalf("expected ok=false, body %s", body)
	}
	if conflicts := gjson.Get(body, "conflicts").Int(); conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %d", conflicts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidatePassesFreeDates(t *testing.T) {
	app, mock := buildBookingsTestApp(t)
	token := signTestToken(t, 7, "user")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "property_blocks" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	resp := postJSON(t, app, token, "/api/booking/property/5/validate",
		`{"checkIn":"2026-09-10T00:00:00Z","checkOut":"2026-09-13T00:00:00Z"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for free dates, got %d: %s", resp.Code, resp.Body.String())
	}
	if ok := gjson.Get(resp.Body.String(), "ok").Bool(); !ok {
		t.Fatalf("expected ok=true, body %s", resp.Body.String())
	}
}

func TestCancellationRefundPolicies(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	paid := func(policy string, daysOut int) *models.Booking {
		return &models.Booking{
			CheckIn:       now.AddDate(0, 0, daysOut),
			TotalPrice:    200,
			PaymentStatus: "paid",
			Property:      &models.Property{CancellationPolicy: policy},
		}
	}

	tests := []struct {
		name   string
		b      *models.Booking
		refund float64
	}{
		{"flexible well ahead", paid("flexible", 3), 200},
		{"flexible same day", paid("flexible", 0), 0},
		{"moderate full", paid("moderate", 6), 200},
		{"moderate half", paid("moderate", 2), 100},
		{"moderate late", paid("moderate", 0), 0},
		{"strict half", paid("strict", 8), 100},
		{"strict late", paid("strict", 3), 0},
		{"unknown policy falls back to moderate", paid("", 6), 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refund, reason := cancellationRefund(tt.b, now)
			if refund != tt.refund {
				t.Fatalf("expected refund %v, got %v (%s)", tt.refund, refund, reason)
			}
		})
	}

	t.Run("unpaid booking refunds nothing", func(t *testing.T) {
		b := paid("flexible", 10)
		b.PaymentStatus = "pending"
		refund, _ := cancellationRefund(b, now)
		if refund != 0 {
			t.Fatalf("expected no refund on unpaid booking, got %v", refund)
		}
	})
}

func TestBookingReferenceFormat(t *testing.T) {
	ref := newBookingReference()
	if !strings.HasPrefix(ref, "HOY-") {
		t.Fatalf("expected HOY- prefix, got %q", ref)
	}
	if len(ref) != 12 {
		t.Fatalf("expected 12 characters, got %d (%q)", len(ref), ref)
	}
	if ref != strings.ToUpper(ref) {
		t.Fatalf("expected uppercase reference, got %q", ref)
	}
	if ref == newBookingReference() {
		t.Fatalf("expected two references to differ")
	}
}
