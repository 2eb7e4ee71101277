package search

import (
	"fmt"
	"time"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
)

// Window is a resolved inclusive time range. An unconstrained window
// matches everything.
type Window struct {
	Low         time.Time
	High        time.Time
	Constrained bool
}

// ResolveWindow turns the digit-string date and clock arguments into an
// inclusive window in local time.
//
// Dates are YYYY, YYYYMM or YYYYMMDD; omitted components widen the window
// to the whole year, month or day. Clocks are HH, HHMM or HHMMSS and
// narrow a single day: the anchor day is the full date when one was
// given, today when no date was given. A partial date cannot anchor a
// clock, so the clock is reported malformed and the date window stands.
//
// Malformed components are returned as warnings, never errors: the query
// proceeds with whatever window survived, possibly none.
func ResolveWindow(date, clock string, now time.Time) (Window, []error) {
	var w Window
	var warns []error

	year, month, day := now.Date()
	anchored := true // year/month/day name one full day

	if date != "" {
		parsedYear, parsedMonth, parsedDay, window, err := resolveDate(date)
		if err != nil {
			warns = append(warns, err)
			if parsedYear != 0 {
				// Digits parsed but named no real day; nothing to
				// anchor a clock on.
				anchored = false
			}
		} else {
			w = window
			if parsedDay == 0 {
				anchored = false
			} else {
				year, month, day = parsedYear, parsedMonth, parsedDay
			}
		}
	}

	if clock != "" {
		clockWindow, err := resolveClock(clock, year, month, day, anchored)
		if err != nil {
			warns = append(warns, err)
		} else {
			// A resolved clock narrows to its anchor day and replaces
			// any wider date window.
			w = clockWindow
		}
	}

	return w, warns
}

// resolveDate parses a date digit string. On success it returns the
// parsed components (day is 0 unless the string named a full day) and the
// widened window. On failure the returned year is 0 for unparseable
// input, non-zero when digits parsed but named no real date.
func resolveDate(date string) (int, time.Month, int, Window, error) {
	if !allDigits(date) || (len(date) != 4 && len(date) != 6 && len(date) != 8) {
		return 0, 0, 0, Window{}, perrors.QueryError(perrors.ErrCodeQueryBadDate,
			fmt.Sprintf("date %q must be digits shaped YYYY, YYYYMM or YYYYMMDD", date))
	}

	year := atoiDigits(date[0:4])

	if len(date) == 4 {
		return year, 0, 0, Window{
			Low:         time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local),
			High:        time.Date(year, time.December, 31, 23, 59, 59, 0, time.Local),
			Constrained: true,
		}, nil
	}

	month := atoiDigits(date[4:6])
	if month < 1 || month > 12 {
		return year, 0, 0, Window{}, perrors.QueryError(perrors.ErrCodeQueryBadDate,
			fmt.Sprintf("date %q names month %d", date, month))
	}

	if len(date) == 6 {
		last := lastDayOfMonth(year, time.Month(month))
		return year, time.Month(month), 0, Window{
			Low:         time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local),
			High:        time.Date(year, time.Month(month), last, 23, 59, 59, 0, time.Local),
			Constrained: true,
		}, nil
	}

	day := atoiDigits(date[6:8])
	if day < 1 || day > lastDayOfMonth(year, time.Month(month)) {
		return year, 0, 0, Window{}, perrors.QueryError(perrors.ErrCodeQueryBadDate,
			fmt.Sprintf("date %q names day %d", date, day))
	}

	return year, time.Month(month), day, Window{
		Low:         time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local),
		High:        time.Date(year, time.Month(month), day, 23, 59, 59, 0, time.Local),
		Constrained: true,
	}, nil
}

// resolveClock parses a clock digit string against an anchor day.
func resolveClock(clock string, year int, month time.Month, day int, anchored bool) (Window, error) {
	if !allDigits(clock) || (len(clock) != 2 && len(clock) != 4 && len(clock) != 6) {
		return Window{}, perrors.QueryError(perrors.ErrCodeQueryBadClock,
			fmt.Sprintf("clock %q must be digits shaped HH, HHMM or HHMMSS", clock))
	}
	if !anchored {
		return Window{}, perrors.QueryError(perrors.ErrCodeQueryBadClock,
			"clock requires a full date or no date at all")
	}

	hour := atoiDigits(clock[0:2])
	if hour > 23 {
		return Window{}, perrors.QueryError(perrors.ErrCodeQueryBadClock,
			fmt.Sprintf("clock %q names hour %d", clock, hour))
	}
	if len(clock) == 2 {
		return Window{
			Low:         time.Date(year, month, day, hour, 0, 0, 0, time.Local),
			High:        time.Date(year, month, day, hour, 59, 59, 0, time.Local),
			Constrained: true,
		}, nil
	}

	minute := atoiDigits(clock[2:4])
	if minute > 59 {
		return Window{}, perrors.QueryError(perrors.ErrCodeQueryBadClock,
			fmt.Sprintf("clock %q names minute %d", clock, minute))
	}
	if len(clock) == 4 {
		return Window{
			Low:         time.Date(year, month, day, hour, minute, 0, 0, time.Local),
			High:        time.Date(year, month, day, hour, minute, 59, 0, time.Local),
			Constrained: true,
		}, nil
	}

	second := atoiDigits(clock[4:6])
	if second > 59 {
		return Window{}, perrors.QueryError(perrors.ErrCodeQueryBadClock,
			fmt.Sprintf("clock %q names second %d", clock, second))
	}
	exact := time.Date(year, month, day, hour, minute, second, 0, time.Local)
	return Window{Low: exact, High: exact, Constrained: true}, nil
}

// lastDayOfMonth returns the final day number of the month, leap years
// included: day zero of the next month normalizes backwards.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoiDigits converts an all-digit string; callers validate first.
func atoiDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
