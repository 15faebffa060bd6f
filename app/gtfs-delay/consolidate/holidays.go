package consolidate

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// day types reported in consolidation summaries
const (
	Weekday = "weekday"
	Weekend = "weekend"
	Holiday = "holiday"
)

//transitHolidayCalendar holds the holidays observed by a transit agency, used to label service dates
type transitHolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

//makeTransitHolidayCalendar builds transitHolidayCalendar
//TODO:: should be customizable by transit agency rather than being hardcoded as it is now.
func makeTransitHolidayCalendar() *transitHolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
		us.Juneteenth,
	)
	return &transitHolidayCalendar{calendar: calendar}
}

//dayType returns Holiday if serviceDate is an observed holiday, otherwise Weekend or Weekday
func (t *transitHolidayCalendar) dayType(serviceDate time.Time) string {
	_, observed, _ := t.calendar.IsHoliday(serviceDate)
	if observed {
		return Holiday
	}
	switch serviceDate.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	return Weekday
}
