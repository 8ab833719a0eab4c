package pickups

import "time"

const (
	cutoffHour = 12
	pickupHour = 13
)

// PickupDate is 13:00 on the same day when now is before noon in loc, and
// 13:00 on the next day otherwise.
func PickupDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := local
	if local.Hour() >= cutoffHour {
		day = local.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), pickupHour, 0, 0, 0, loc)
}
