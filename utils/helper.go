package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

const DateLayout = "2006-01-02"

var validate = validator.New()

// ValidateStruct checks `validate` tags and reports the failing fields as one validation error.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return ValidationErrorf("invalid input: %v", err)
	}
	fields := ProcessValidationErrors(err)
	parts := make([]string, 0, len(fields))
	for field, tag := range fields {
		parts = append(parts, field+" "+tag)
	}
	return ValidationErrorf("invalid input: %s", strings.Join(SortedStrings(parts), ", "))
}

func ProcessValidationErrors(err error) map[string]string {
	errorMap := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorMap
	}
	for _, e := range validationErrors {
		if e.Param() != "" {
			errorMap[e.Field()] = fmt.Sprintf("failed on %s=%s", e.Tag(), e.Param())
		} else {
			errorMap[e.Field()] = "failed on " + e.Tag()
		}
	}
	return errorMap
}

// NormalizePhone parses a phone number for the given region and returns it in E.164 form.
func NormalizePhone(phoneNumber, region string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return "", ValidationErrorf("invalid phone number %q", phoneNumber)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", ValidationErrorf("invalid phone number %q", phoneNumber)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func SortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// ParseDate parses a canonical YYYY-MM-DD day in local time.
func ParseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, ValidationErrorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return d, nil
}

// TruncateToDay drops the clock part, keeping the calendar day in its location.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

