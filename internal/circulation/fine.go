package circulation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// DefaultFinePerDay is the fine charged for each late day.
var DefaultFinePerDay = decimal.NewFromInt(5)

// LateDays is the number of calendar days between the due day and at, read in
// at's location. A copy returned any time on its due day is on time, and
// midnight belongs to the day that just ended. Zero dates and timestamps count
// as on time.
func LateDays(due model.Date, at time.Time) int {
	if due.IsZero() || at.IsZero() {
		return 0
	}
	days := due.DaysUntil(model.DateOf(at))
	if atMidnight(at) {
		days--
	}
	if days <= 0 {
		return 0
	}
	return days
}

func atMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// Assess computes the lateness, fine and status of a copy due on due and
// returned at at.
func Assess(due model.Date, at time.Time, perDay decimal.Decimal) model.Assessment {
	days := LateDays(due, at)
	a := model.Assessment{
		LateDays: days,
		Fine:     perDay.Mul(decimal.NewFromInt(int64(days))),
		Status:   model.ReturnOnTime,
	}
	if days > 0 {
		a.Status = model.ReturnLate
	}
	return a
}
