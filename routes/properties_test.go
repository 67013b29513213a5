package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestListingPayloadCanonical(t *testing.T) {
	t.Run("legacy keys fill empty canonical fields", func(t *testing.T) {
		p := listingPayload{
			Name:          "Berbera Beach House",
			Photos:        []string{"a.jpg", "b.jpg"},
			PricePerNight: 35,
		}
		in := p.canonical()
		if in.Title != "Berbera Beach House" {
			t.Fatalf("expected legacy name to become title, got %q", in.Title)
		}
		if len(in.Images) != 2 || in.Images[0] != "a.jpg" {
			t.Fatalf("expected legacy photos to become images, got %v", in.Images)
		}
		if in.NightlyPrice != 35 {
			t.Fatalf("expected legacy pricePerNight to become nightlyPrice, got %v", in.NightlyPrice)
		}
	})

	t.Run("canonical keys win over legacy twins", func(t *testing.T) {
		p := listingPayload{
			Title:         "Hargeisa Apartment",
			Name:          "Old Name",
			Images:        []string{"new.jpg"},
			Photos:        []string{"old.jpg"},
			NightlyPrice:  50,
			PricePerNight: 10,
		}
		in := p.canonical()
		if in.Title != "Hargeisa Apartment" {
			t.Fatalf("expected canonical title to win, got %q", in.Title)
		}
		if len(in.Images) != 1 || in.Images[0] != "new.jpg" {
			t.Fatalf("expected canonical images to win, got %v", in.Images)
		}
		if in.NightlyPrice != 50 {
			t.Fatalf("expected canonical nightlyPrice to win, got %v", in.NightlyPrice)
		}
	})
}

func buildPropertiesTestApp(t *testing.T) (*iris.Application, sqlmock.Sqlmock) {
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

	h := NewProperties(db, validator.New(), nil)
	app.Post("/api/property/search", h.Search)
	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app, mock
}

func TestSearchBoundingBox(t *testing.T) {
	app, mock := buildPropertiesTestApp(t)

	rows := sqlmock.NewRows([]string{"id", "host_id", "title", "city", "lat", "lng", "nightly_price", "currency", "rating"}).
		AddRow(3, 2, "Maansoor Villa", "Hargeisa", 9.562, 44.077, 40.0, "USD", 4.8).
		AddRow(8, 5, "Gacan Libaax Lodge", "Hargeisa", 9.59, 44.05, 25.0, "USD", 4.2)
	mock.ExpectQuery(`SELECT \* FROM "properties" WHERE \(?lat >= \$1 AND lat <= \$2 AND lng >= \$3 AND lng <= \$4 AND is_active = true`).
		WillReturnRows(rows)
	// Units preload for the two matched listings.
	mock.ExpectQuery(`SELECT \* FROM "property_units" WHERE "property_units"\."property_id" IN`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "name"}))

	req := httptest.NewRequest(http.MethodPost, "/api/property/search",
		strings.NewReader(`{"latLow":9.4,"latHigh":9.7,"lngLow":43.9,"lngHigh":44.2}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	body := resp.Body.String()
	if n := gjson.Get(body, "#").Int(); n != 2 {
		t.Fatalf("expected 2 listings, got %d: %s", n, body)
	}
	if title := gjson.Get(body, "0.title").String(); title != "Maansoor Villa" {
		t.Fatalf("expected first listing Maansoor Villa, got %q", title)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
