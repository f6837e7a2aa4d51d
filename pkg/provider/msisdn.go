package provider

import (
	"fmt"
	"strings"
)

const msisdnCountryCode = "251"

// NormalizeMSISDN canonicalizes an Ethiopian mobile number to the
// +251XXXXXXXXX form. Accepted inputs are the local format (0 followed by a
// 9-digit subscriber number) and the international format with or without a
// leading plus. Subscriber numbers must be 9 digits starting with 9 or 7.
func NormalizeMSISDN(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", fmt.Errorf("empty phone number")
	}

	var subscriber string
	switch {
	case strings.HasPrefix(cleaned, "+"+msisdnCountryCode):
		subscriber = cleaned[len("+"+msisdnCountryCode):]
	case strings.HasPrefix(cleaned, msisdnCountryCode):
		subscriber = cleaned[len(msisdnCountryCode):]
	case strings.HasPrefix(cleaned, "0"):
		subscriber = cleaned[1:]
	default:
		return "", fmt.Errorf("unrecognized phone format: %s", raw)
	}

	if len(subscriber) != 9 {
		return "", fmt.Errorf("subscriber number must be 9 digits, got %d", len(subscriber))
	}

	if subscriber[0] != '9' && subscriber[0] != '7' {
		return "", fmt.Errorf("unsupported subscriber prefix: %c", subscriber[0])
	}

	for _, r := range subscriber {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number contains non-digit characters")
		}
	}

	return "+" + msisdnCountryCode + subscriber, nil
}
