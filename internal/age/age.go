// Package age converts a child's birthdate into a whole-month age used as
// the lookup key for the screening question bank.
package age

import "time"

const birthdateLayout = "2006-01-02"

// ParseBirthdate parses a YYYY-MM-DD birthdate string. The second return
// value is false when the text is not a valid calendar date; callers must
// treat that as "cannot proceed" rather than an error.
func ParseBirthdate(text string) (time.Time, bool) {
	t, err := time.Parse(birthdateLayout, text)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Months returns the child's age in whole months at the reference time.
//
// Year, month, and day components are subtracted independently and then
// normalized: a negative day delta borrows one month and adds the day count
// of the previous calendar month, a negative month delta borrows one year.
// A leftover day remainder of 30 or more rounds up to one extra month. The
// result is intentionally approximate (30-day threshold, not proportional)
// and is used only as a lookup key.
func Months(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	months := int(now.Month()) - int(birth.Month())
	days := now.Day() - birth.Day()

	if days < 0 {
		months--
		lastMonthEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
		days += lastMonthEnd.Day()
	}

	if months < 0 {
		years--
		months += 12
	}

	total := years*12 + months
	if days >= 30 {
		total++
	}

	return total
}
