package utils

import (
	"regexp"
	"strings"
)

// FormatPhoneNumber formats a phone number to a standard format
// Removes all non-digit characters and ensures it starts with country code
func FormatPhoneNumber(phoneNumber string) string {
	// Remove all non-digit characters
	re := regexp.MustCompile(`\D`)
	digits := re.ReplaceAllString(phoneNumber, "")

	// If it doesn't start with country code, assume Somaliland (+252)
	if len(digits) > 0 && !strings.HasPrefix(digits, "252") {
		// Remove leading zeros
		digits = strings.TrimLeft(digits, "0")
		// Add country code
		digits = "252" + digits
	}

	return digits
}

// ValidatePhoneNumber validates if a phone number is in correct format
func ValidatePhoneNumber(phoneNumber string) bool {
	// Remove all non-digit characters
	re := regexp.MustCompile(`\D`)
	cleaned := re.ReplaceAllString(phoneNumber, "")

	// Strip the country code if present
	cleaned = strings.TrimPrefix(cleaned, "252")
	cleaned = strings.TrimLeft(cleaned, "0")

	// Local numbers are exactly 9 digits
	if len(cleaned) != 9 {
		return false
	}

	// Mobile numbers start with 6 (63 Telesom, 65 Somtel, ...)
	return strings.HasPrefix(cleaned, "6")
}

// NormalizePhoneNumber normalizes phone number for database storage
func NormalizePhoneNumber(phoneNumber string) string {
	return FormatPhoneNumber(phoneNumber)
}

// DisplayPhoneNumber formats phone number for display
func DisplayPhoneNumber(phoneNumber string) string {
	formatted := FormatPhoneNumber(phoneNumber)
	if len(formatted) == 12 && strings.HasPrefix(formatted, "252") {
		// Format as +252 XX XXX XXXX
		return "+" + formatted[:3] + " " + formatted[3:5] + " " + formatted[5:8] + " " + formatted[8:]
	}
	return phoneNumber
}
