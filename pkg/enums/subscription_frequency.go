package enums

import (
	"fmt"
	"time"
)

// SubscriptionFrequency is how often a recurring order repeats.
type SubscriptionFrequency string

const (
	SubscriptionFrequencyDaily   SubscriptionFrequency = "Daily"
	SubscriptionFrequencyWeekly  SubscriptionFrequency = "Weekly"
	SubscriptionFrequencyMonthly SubscriptionFrequency = "Monthly"
)

var validSubscriptionFrequencys = []SubscriptionFrequency{
	SubscriptionFrequencyDaily,
	SubscriptionFrequencyWeekly,
	SubscriptionFrequencyMonthly,
}

// String implements fmt.Stringer.
func (s SubscriptionFrequency) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionFrequency.
func (s SubscriptionFrequency) IsValid() bool {
	for _, candidate := range validSubscriptionFrequencys {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionFrequency converts raw input into a SubscriptionFrequency.
func ParseSubscriptionFrequency(value string) (SubscriptionFrequency, error) {
	for _, candidate := range validSubscriptionFrequencys {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription frequency %q", value)
}

// Next returns the delivery date following from.
func (s SubscriptionFrequency) Next(from time.Time) time.Time {
	switch s {
	case SubscriptionFrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case SubscriptionFrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}
