package qr

import (
	"fmt"
	"strings"

	"qrgen/internal/models"
)

// FormatErrorCode classifies a payload validation failure.
type FormatErrorCode string

const (
	ErrEmptyContent      FormatErrorCode = "empty_content"
	ErrInvalidWifiFormat FormatErrorCode = "invalid_wifi_format"
	ErrUnknownType       FormatErrorCode = "unknown_type"
)

// FormatError is a validation failure from Format. It is always returned
// as a value; formatting does no I/O and never panics.
type FormatError struct {
	Code    FormatErrorCode
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// Format turns raw user content into the literal string to encode in a QR
// image, applying the normalization rules for the given payload type.
// It is a pure function: identical inputs always yield identical outputs.
func Format(content, qrType string) (string, error) {
	if content == "" {
		return "", &FormatError{Code: ErrEmptyContent, Message: "QR code content cannot be empty."}
	}

	switch qrType {
	case models.TypeText:
		return content, nil

	case models.TypeURL:
		if !strings.HasPrefix(content, "http://") && !strings.HasPrefix(content, "https://") {
			return "https://" + content, nil
		}
		return content, nil

	case models.TypeEmail:
		// Everything after the first '?' is passed through as mailto
		// query parameters (subject, body, ...).
		address, params, found := strings.Cut(content, "?")
		if found {
			return fmt.Sprintf("mailto:%s?%s", address, params), nil
		}
		return "mailto:" + address, nil

	case models.TypePhone:
		return "tel:" + stripNonDigits(content), nil

	case models.TypeSMS:
		number, message, found := strings.Cut(content, "?")
		if found {
			return fmt.Sprintf("sms:%s?%s", stripNonDigits(number), message), nil
		}
		return "sms:" + stripNonDigits(number), nil

	case models.TypeWifi:
		return formatWifi(content)
	}

	return "", &FormatError{Code: ErrUnknownType, Message: fmt.Sprintf("unknown QR code type: %s", qrType)}
}

// formatWifi expects "SSID,Type,Password" with an optional fourth hidden
// flag, where only the literal "true" marks the network hidden.
func formatWifi(content string) (string, error) {
	parts := strings.Split(content, ",")
	if len(parts) < 3 {
		return "", &FormatError{
			Code:    ErrInvalidWifiFormat,
			Message: "For Wi-Fi, provide: SSID,Type (WEP/WPA/blank),Password,Hidden(true/false)",
		}
	}

	ssid := strings.TrimSpace(parts[0])
	securityType := strings.TrimSpace(parts[1])
	password := strings.TrimSpace(parts[2])
	hidden := "false"
	if len(parts) > 3 && strings.TrimSpace(parts[3]) == "true" {
		hidden = "true"
	}

	return fmt.Sprintf("WIFI:S:%s;T:%s;P:%s;H:%s;", ssid, securityType, password, hidden), nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
