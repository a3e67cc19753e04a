// Package action triggers side effects outside the assistant: opening pages
// and sending messages.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNumber is matched by every NumberError.
var ErrInvalidNumber = errors.New("invalid phone number")

// NumberError explains why a phone number was rejected. Its message is
// suitable for speaking back to the user.
type NumberError struct {
	Raw    string
	Reason string
}

func (e *NumberError) Error() string {
	return "Invalid number format. " + e.Reason
}

func (e *NumberError) Is(target error) bool {
	return target == ErrInvalidNumber
}

const minDigits = 10

// Browser opens URLs for the user.
type Browser interface {
	Open(ctx context.Context, url string) error
}

// Messenger delivers a text message to a phone number in international format.
type Messenger interface {
	SendMessage(ctx context.Context, number, body string) error
}

// NormalizeNumber turns a spoken or typed number into "+<digits>". Spoken
// "plus" becomes "+" and separators are dropped. Without a "+" the number must
// have exactly 10 digits and gets defaultCC prefixed. Anything shorter than 10
// digits is rejected.
func NormalizeNumber(raw, defaultCC string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "plus", "+")
	s = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "").Replace(s)

	hasPlus := strings.HasPrefix(s, "+")
	digits := strings.TrimPrefix(s, "+")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &NumberError{Raw: raw, Reason: "A phone number can only contain digits."}
		}
	}

	if !hasPlus {
		if len(digits) != minDigits {
			return "", &NumberError{Raw: raw, Reason: fmt.Sprintf("Please include the country code or provide a %d-digit number.", minDigits)}
		}
		digits = strings.TrimPrefix(strings.TrimSpace(defaultCC), "+") + digits
	}
	if len(digits) < minDigits {
		return "", &NumberError{Raw: raw, Reason: "Number too short."}
	}
	return "+" + digits, nil
}
