package service

import "time"

// Recognized batch schedules.
const (
	ScheduleDaily   = "daily_23:00"
	ScheduleWeekly  = "weekly_sunday_01:00"
	ScheduleMonthly = "monthly_1st_02:00"
)

// NextRun returns the first occurrence of schedule strictly after now, in
// now's location. Unknown schedules run one hour from now.
func NextRun(schedule string, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()

	switch schedule {
	case ScheduleDaily:
		next := time.Date(y, m, d, 23, 0, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, m, d+1, 23, 0, 0, 0, loc)
		}
		return next
	case ScheduleWeekly:
		days := (7 - int(now.Weekday())) % 7
		next := time.Date(y, m, d+days, 1, 0, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, m, d+days+7, 1, 0, 0, 0, loc)
		}
		return next
	case ScheduleMonthly:
		next := time.Date(y, m, 1, 2, 0, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, m+1, 1, 2, 0, 0, 0, loc)
		}
		return next
	default:
		return now.Add(time.Hour)
	}
}
