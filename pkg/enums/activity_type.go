package enums

import "fmt"

// ActivityType maps to the activity_type_enum enum in Postgres.
type ActivityType string

const (
	ActivityTypePaymentSync      ActivityType = "payment_sync"
	ActivityTypePaymentVerify    ActivityType = "payment_verify"
	ActivityTypeDuplicateCleanup ActivityType = "duplicate_cleanup"
	ActivityTypeWebhookReceived  ActivityType = "webhook_received"
	ActivityTypeStudentRegister  ActivityType = "student_register"
)

var validActivityTypes = []ActivityType{
	ActivityTypePaymentSync,
	ActivityTypePaymentVerify,
	ActivityTypeDuplicateCleanup,
	ActivityTypeWebhookReceived,
	ActivityTypeStudentRegister,
}

// IsValid reports whether the value matches the canonical activity enum.
func (t ActivityType) IsValid() bool {
	for _, candidate := range validActivityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseActivityType converts raw input into ActivityType.
func ParseActivityType(value string) (ActivityType, error) {
	for _, candidate := range validActivityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity type %q", value)
}
