package enums

import "fmt"

// AlertCategory maps to the alert_category enum in Postgres.
type AlertCategory string

const (
	AlertCategoryEmergency         AlertCategory = "emergency"
	AlertCategoryPowerOutage       AlertCategory = "power_outage"
	AlertCategoryWaterInterruption AlertCategory = "water_interruption"
	AlertCategoryGarbageCollection AlertCategory = "garbage_collection"
	AlertCategoryCommunityEvent    AlertCategory = "community_event"
	AlertCategoryGeneral           AlertCategory = "general"
)

var validAlertCategories = []AlertCategory{
	AlertCategoryEmergency,
	AlertCategoryPowerOutage,
	AlertCategoryWaterInterruption,
	AlertCategoryGarbageCollection,
	AlertCategoryCommunityEvent,
	AlertCategoryGeneral,
}

// IsValid reports whether the value is a known AlertCategory.
func (a AlertCategory) IsValid() bool {
	for _, candidate := range validAlertCategories {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertCategory converts raw input into an AlertCategory.
func ParseAlertCategory(value string) (AlertCategory, error) {
	for _, candidate := range validAlertCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert category %q", value)
}

// NotificationType returns the notification severity tag used when an alert
// in this category is broadcast. Emergencies page residents as urgent.
func (a AlertCategory) NotificationType() NotificationType {
	if a == AlertCategoryEmergency {
		return NotificationTypeUrgent
	}
	return NotificationTypeInfo
}
