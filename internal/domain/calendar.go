package domain

import "time"

const (
	DateKeyLayout     = "2006-01-02"
	DisplayDateLayout = "02/01/2006"
)

// Calendar maps instants to calendar days in the gym's timezone.
type Calendar struct {
	Loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Loc: loc}
}

func (c Calendar) loc() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// DayBounds returns [start, end) of the calendar day containing t.
func (c Calendar) DayBounds(t time.Time) (time.Time, time.Time) {
	lt := t.In(c.loc())
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc())
	return start, start.AddDate(0, 0, 1)
}

// DateKey formats the calendar day of t as YYYY-MM-DD.
func (c Calendar) DateKey(t time.Time) string {
	return t.In(c.loc()).Format(DateKeyLayout)
}

// Compact formats the calendar day of t as YYYYMMDD.
func (c Calendar) Compact(t time.Time) string {
	return t.In(c.loc()).Format("20060102")
}

// FormatDate renders t as DD/MM/YYYY in the gym's timezone.
func (c Calendar) FormatDate(t time.Time) string {
	return t.In(c.loc()).Format(DisplayDateLayout)
}

// Hour returns the hour of day of t in the gym's timezone.
func (c Calendar) Hour(t time.Time) int {
	return t.In(c.loc()).Hour()
}

// ParseDate parses a YYYY-MM-DD key into the start of that day.
func (c Calendar) ParseDate(key string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, c.loc())
}
