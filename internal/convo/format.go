package convo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	maxQty      = 10000
	maxNameLen  = 120
	maxValueLen = 200
	minPhoneLen = 6
)

// parseQty accepts only a plain positive integer: no sign, no decimals.
func parseQty(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 || n > maxQty {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{"2006-01-02", "2/1/2006", "2-1-2006"}

// parseDate understands ISO dates, day-first dates and the words hoy/ayer,
// all in the business location.
func parseDate(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	today := now.In(loc)
	switch text {
	case "":
		return time.Time{}, false
	case "hoy":
		return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc), true
	case "ayer":
		return time.Date(today.Year(), today.Month(), today.Day()-1, 0, 0, 0, 0, loc), true
	}
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, text, loc); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func displayDate(d time.Time) string {
	return fmt.Sprintf("%d/%d/%d", d.Day(), int(d.Month()), d.Year())
}

func validPhone(text string) bool {
	digits := 0
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneLen
}

// validateField checks a client field value and returns the normalized
// value or a user-facing message. A lone "-" clears an optional field.
func validateField(field, value string) (string, string) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "-" && field != "name" {
		return "", ""
	}
	switch field {
	case "name":
		if value == "" {
			return "", msgNameEmpty
		}
		if utf8.RuneCountInString(value) > maxNameLen {
			return "", msgNameLong
		}
	case "phone":
		if !validPhone(value) {
			return "", msgPhoneBad
		}
	default:
		if utf8.RuneCountInString(value) > maxValueLen {
			return "", msgValueLong
		}
	}
	return value, ""
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
