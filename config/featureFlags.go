package config

import (
	"os"
	"strings"
	"time"
)

// StrictOverpayment rejects settlement amounts above what is owed
// (client credit, loan amortization, supplier installments, payroll deduction).
// When disabled the amount is capped to the outstanding balance.
//
// Set via env:
// - STRICT_OVERPAYMENT=true
func StrictOverpayment() bool {
	return boolFromEnv("STRICT_OVERPAYMENT")
}

// BookingLockTimeout bounds how long a booking waits on the per-(professional, date) lock.
//
// Set via env:
// - BOOKING_LOCK_TIMEOUT_SECONDS (default 10)
func BookingLockTimeout() time.Duration {
	secs := intFromEnv("BOOKING_LOCK_TIMEOUT_SECONDS", 10)
	if secs <= 0 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}

// PhoneRegion is the default region used to parse phone numbers without a country prefix.
//
// Set via env:
// - PHONE_REGION (default CO)
func PhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if v == "" {
		return "CO"
	}
	return v
}

// AuditPublishEnabled starts the audit dispatcher that forwards audit rows to Pub/Sub.
//
// Set via env:
// - AUDIT_PUBSUB_TOPIC=<topic>
func AuditPublishEnabled() bool {
	return strings.TrimSpace(os.Getenv("AUDIT_PUBSUB_TOPIC")) != ""
}
