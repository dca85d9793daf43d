package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a phone number does not reduce to 10 or 11 digits.
var ErrInvalidPhone = errors.New("올바른 전화번호 형식이 아닙니다. 10-11자리 숫자를 입력해주세요.")

var koreanMobilePrefixes = []string{"010", "011", "016", "017", "018", "019"}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips everything but ASCII digits. The result is the only
// form used for storage and comparison.
func NormalizePhone(raw string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) < 10 || len(digits) > 11 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

func IsValidPhone(raw string) bool {
	_, err := NormalizePhone(raw)
	return err == nil
}

// FormatPhone is display only: 0101234567 -> 010-123-4567, 01012345678 -> 010-1234-5678.
// Anything else comes back unchanged.
func FormatPhone(phone string) string {
	d := digitsOnly(phone)
	switch len(d) {
	case 10:
		return d[:3] + "-" + d[3:6] + "-" + d[6:]
	case 11:
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	}
	return phone
}

func IsKoreanMobile(phone string) bool {
	d := digitsOnly(phone)
	for _, p := range koreanMobilePrefixes {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}

// PhoneDigits returns the digits of s, used when a free-text search may contain a phone fragment.
func PhoneDigits(s string) string {
	return digitsOnly(s)
}
