package currency

import "time"

// DateLayout is the wire and storage representation of a rate date.
const DateLayout = "2006-01-02"

// Resolution is the granularity rates are modelled at.
const Resolution = 24 * time.Hour

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

func PreviousDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, -1)
}

// DaysBetween returns the number of whole days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)) / Resolution)
}

func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}
