package booking

import (
	"io"
	"log"
	"testing"
	"time"
)

func testCalculator() *Calculator {
	return NewCalculator(log.New(io.Discard, "", 0))
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNights(t *testing.T) {
	c := testCalculator()

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     int
	}{
		{"three nights", date("2025-06-01"), date("2025-06-04"), 3},
		{"single night", date("2025-06-01"), date("2025-06-02"), 1},
		{"partial day rounds up", date("2025-06-01"), date("2025-06-02").Add(6 * time.Hour), 2},
		{"equal dates", date("2025-06-01"), date("2025-06-01"), 0},
		{"inverted range", date("2025-06-04"), date("2025-06-01"), 0},
		{"zero check-in", time.Time{}, date("2025-06-04"), 0},
		{"zero check-out", date("2025-06-01"), time.Time{}, 0},
		{"both zero", time.Time{}, time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Nights(tt.checkIn, tt.checkOut); got != tt.want {
				t.Fatalf("Nights(%v, %v) = %d, want %d", tt.checkIn, tt.checkOut, got, tt.want)
			}
		})
	}
}

func TestValidDates(t *testing.T) {
	c := testCalculator()

	if !c.ValidDates(date("2025-06-01"), date("2025-06-04")) {
		t.Fatal("expected a proper range to be valid")
	}
	if c.ValidDates(date("2025-06-01"), date("2025-06-01")) {
		t.Fatal("expected equal dates to be invalid")
	}
	if c.ValidDates(date("2025-06-04"), date("2025-06-01")) {
		t.Fatal("expected an inverted range to be invalid")
	}
	if c.ValidDates(time.Time{}, date("2025-06-04")) {
		t.Fatal("expected a missing check-in to be invalid")
	}
	if c.ValidDates(date("2025-06-01"), time.Time{}) {
		t.Fatal("expected a missing check-out to be invalid")
	}
}

func TestQuote(t *testing.T) {
	c := testCalculator()

	d := c.Quote(100, 3, Fees{CleaningFee: 20, ServiceFee: 10, Taxes: 5})
	if d.Total != 335 {
		t.Fatalf("expected total 335, got %v", d.Total)
	}
	if d.BasePerNight != 100 || d.Nights != 3 {
		t.Fatalf("expected base 100 over 3 nights preserved, got %+v", d)
	}
	if d.CleaningFee != 20 || d.ServiceFee != 10 || d.Taxes != 5 {
		t.Fatalf("expected fees preserved, got %+v", d)
	}
}

func TestQuoteClampsNegatives(t *testing.T) {
	c := testCalculator()

	d := c.Quote(-50, 3, Fees{CleaningFee: -20, ServiceFee: -10, Taxes: -5})
	if d.Total != 0 {
		t.Fatalf("expected fully negative input to quote 0, got %v", d.Total)
	}

	d = c.Quote(100, -2, Fees{CleaningFee: 20, ServiceFee: 10, Taxes: 5})
	if d.Nights != 0 {
		t.Fatalf("expected negative nights clamped to 0, got %d", d.Nights)
	}
	if d.Total != 35 {
		t.Fatalf("expected fees-only total 35, got %v", d.Total)
	}

	d = c.Quote(100, 2, Fees{CleaningFee: -1, ServiceFee: 10, Taxes: 5})
	if d.CleaningFee != 0 {
		t.Fatalf("expected negative cleaning fee clamped to 0, got %v", d.CleaningFee)
	}
	if d.Total != 215 {
		t.Fatalf("expected total 215 with clamped cleaning fee, got %v", d.Total)
	}
}

func TestQuoteZeroNights(t *testing.T) {
	c := testCalculator()

	d := c.Quote(100, 0, Fees{CleaningFee: 20, ServiceFee: 10, Taxes: 5})
	if d.Total != 35 {
		t.Fatalf("expected zero-night quote to hold only fees (35), got %v", d.Total)
	}
}

func TestQuoteStay(t *testing.T) {
	c := testCalculator()

	d := c.QuoteStay(100, date("2025-06-01"), date("2025-06-04"), Fees{CleaningFee: 20, ServiceFee: 10, Taxes: 5})
	if d.Nights != 3 {
		t.Fatalf("expected 3 nights, got %d", d.Nights)
	}
	if d.Total != 335 {
		t.Fatalf("expected total 335, got %v", d.Total)
	}

	// An invalid range degrades to a fees-only quote instead of failing.
	d = c.QuoteStay(100, date("2025-06-04"), date("2025-06-01"), Fees{CleaningFee: 20, ServiceFee: 10, Taxes: 5})
	if d.Nights != 0 || d.Total != 35 {
		t.Fatalf("expected inverted range to quote 0 nights / 35 total, got %+v", d)
	}
}

func TestGuestsSummary(t *testing.T) {
	tests := []struct {
		name   string
		guests Guests
		want   string
	}{
		{"single adult", Guests{Adults: 1}, "1 adult"},
		{"adults and child", Guests{Adults: 2, Children: 1}, "2 adults, 1 child"},
		{"all categories", Guests{Adults: 2, Children: 2, Infants: 1, Pets: 1}, "2 adults, 2 children, 1 infant, 1 pet"},
		{"plural children", Guests{Children: 3}, "3 children"},
		{"pets only", Guests{Pets: 2}, "2 pets"},
		{"empty party", Guests{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.guests.Summary(); got != tt.want {
				t.Fatalf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuestsCountAndValid(t *testing.T) {
	g := Guests{Adults: 2, Children: 1, Infants: 1, Pets: 1}
	if g.Count() != 3 {
		t.Fatalf("expected infants and pets excluded from count, got %d", g.Count())
	}
	if !g.Valid() {
		t.Fatal("expected a party with adults to be valid")
	}
	if (Guests{Infants: 2, Pets: 1}).Valid() {
		t.Fatal("expected a party of only infants and pets to be invalid")
	}
	if (Guests{}).Valid() {
		t.Fatal("expected an empty party to be invalid")
	}
	if !(Guests{Children: 1}).Valid() {
		t.Fatal("expected a single child to satisfy minimum occupancy")
	}
}

func TestNewCalculatorNilLogger(t *testing.T) {
	c := NewCalculator(nil)
	if c.Nights(date("2025-06-01"), date("2025-06-03")) != 2 {
		t.Fatal("expected calculator with default logger to still compute nights")
	}
}
