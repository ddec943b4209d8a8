package validation

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Required records an error when value is blank
func (ve *ValidationErrors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
		return false
	}
	return true
}

// MaxLength records an error when value exceeds max runes
func (ve *ValidationErrors) MaxLength(field, value string, max int) bool {
	if utf8.RuneCountInString(value) > max {
		ve.Addf(field, "must be at most %d characters", max)
		return false
	}
	return true
}

// OneOf records an error when value is not one of allowed
func OneOf[T ~string](ve *ValidationErrors, field string, value T, allowed ...T) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	ve.Addf(field, "must be one of: %s", strings.Join(names, ", "))
	return false
}

// NonNegative records an error when value is below zero
func (ve *ValidationErrors) NonNegative(field string, value float64) bool {
	if value < 0 {
		ve.Add(field, "must not be negative")
		return false
	}
	return true
}

// Positive records an error when value is zero or below
func (ve *ValidationErrors) Positive(field string, value float64) bool {
	if value <= 0 {
		ve.Add(field, "must be greater than 0")
		return false
	}
	return true
}

// Range records an error when value falls outside [min, max]
func (ve *ValidationErrors) Range(field string, value, min, max float64) bool {
	if value < min || value > max {
		ve.Addf(field, "must be between %v and %v", min, max)
		return false
	}
	return true
}

// Email records an error when value is not a bare email address
func (ve *ValidationErrors) Email(field, value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		ve.Add(field, "must be a valid email address")
		return false
	}
	return true
}

// URL records an error when a non-empty value is not an absolute http(s) URL
func (ve *ValidationErrors) URL(field, value string) bool {
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add(field, "must be a valid http or https URL")
		return false
	}
	return true
}
