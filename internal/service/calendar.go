package service

import (
	"time"

	"github.com/ds124wfegd/busbooker/internal/entity"
)

// Calendar answers "what day is it" in the college's time zone.
type Calendar struct {
	now func() time.Time
	loc *time.Location
}

// NewCalendar uses time.Now when now is nil and the process zone when loc is nil.
func NewCalendar(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{now: now, loc: loc}
}

func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the local calendar date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.Now().Format(entity.DateLayout)
}
