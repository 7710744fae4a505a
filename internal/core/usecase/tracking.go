package usecase

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"
)

const trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var trackingNumberRegex = regexp.MustCompile(`^TRK-\d{8}-[A-Z0-9]{6}$`)

// NewTrackingNumber returns a tracking number of the form TRK-YYYYMMDD-XXXXXX for the UTC date of now.
func NewTrackingNumber(now time.Time) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error reading random bytes: %w", err)
	}
	for i := range b {
		b[i] = trackingAlphabet[int(b[i])%len(trackingAlphabet)]
	}
	return fmt.Sprintf("TRK-%s-%s", now.UTC().Format("20060102"), b), nil
}

// IsTrackingNumber reports whether s has the shape of a tracking number.
func IsTrackingNumber(s string) bool {
	return trackingNumberRegex.MatchString(s)
}
