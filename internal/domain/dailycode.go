package domain

import (
	"fmt"
	"time"
)

const (
	EntryCodePrefix = "GYM_ENTRY"
	ExitCodePrefix  = "GYM_EXIT"
)

// DailyCode is the pair of codes valid for one calendar date.
type DailyCode struct {
	// Date is the calendar date in the gym's timezone, formatted YYYY-MM-DD.
	Date       string
	EntryCode  string
	ExitCode   string
	ValidUntil time.Time
	CreatedAt  time.Time
}

// Match returns the action a scanned string stands for. Matching is exact.
func (d DailyCode) Match(scanned string) (AccessAction, bool) {
	switch scanned {
	case d.EntryCode:
		return ActionEntry, true
	case d.ExitCode:
		return ActionExit, true
	}
	return "", false
}

// NewDailyCode builds the code pair for the calendar day containing now.
func NewDailyCode(cal Calendar, now time.Time) DailyCode {
	_, end := cal.DayBounds(now)
	stamp := cal.Compact(now)
	ms := now.UnixMilli()
	return DailyCode{
		Date:       cal.DateKey(now),
		EntryCode:  fmt.Sprintf("%s_%s_%d", EntryCodePrefix, stamp, ms),
		ExitCode:   fmt.Sprintf("%s_%s_%d", ExitCodePrefix, stamp, ms),
		ValidUntil: end.Add(-time.Millisecond),
		CreatedAt:  now,
	}
}
