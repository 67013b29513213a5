package utils

import "testing"

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+252 63 442 2211", "252634422211"},
		{"0634422211", "252634422211"},
		{"634422211", "252634422211"},
		{"252634422211", "252634422211"},
		{"63-442-2211", "252634422211"},
	}
	for _, tt := range tests {
		if got := FormatPhoneNumber(tt.in); got != tt.want {
			t.Fatalf("FormatPhoneNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{
		"+252 63 442 2211",
		"634422211",
		"0634422211",
		"252654422211",
	}
	for _, n := range valid {
		if !ValidatePhoneNumber(n) {
			t.Fatalf("expected %q to be valid", n)
		}
	}

	invalid := []string{
		"",
		"12345",
		"734422211",  // not a mobile prefix
		"63442221",   // too short
		"6344222111", // too long
	}
	for _, n := range invalid {
		if ValidatePhoneNumber(n) {
			t.Fatalf("expected %q to be invalid", n)
		}
	}
}

func TestDisplayPhoneNumber(t *testing.T) {
	if got := DisplayPhoneNumber("634422211"); got != "+252 63 442 2211" {
		t.Fatalf("DisplayPhoneNumber = %q, want %q", got, "+252 63 442 2211")
	}
	// Unrecognized shapes are passed through untouched.
	if got := DisplayPhoneNumber("12345"); got != "12345" {
		t.Fatalf("DisplayPhoneNumber passthrough = %q", got)
	}
}
