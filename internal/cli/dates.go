package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dateLayout = "2006-01-02"

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate reads a --from or --to value. A calendar date is the start of
// that day in local time; anything else goes through natural language
// parsing relative to now ("yesterday", "2 weeks ago", "last monday").
// With endOfDay a calendar date is moved to the start of the next day so an
// exclusive bound includes the whole day.
func parseDate(s string, now time.Time, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, now.Location()); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return time.Time{}, userError("invalid date %q: %v", s, err)
	}
	if r == nil {
		return time.Time{}, userError("invalid date %q: want YYYY-MM-DD or an expression like \"3 days ago\"", s)
	}
	return r.Time, nil
}

// dateRange parses a from/to pair and checks its order.
func dateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	f, err := parseDate(from, now, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := parseDate(to, now, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !f.IsZero() && !t.IsZero() && !f.Before(t) {
		return time.Time{}, time.Time{}, userError("empty date range: %s is not before %s",
			f.Format(time.RFC3339), t.Format(time.RFC3339))
	}
	return f, t, nil
}

func describeRange(from, to time.Time) string {
	switch {
	case from.IsZero() && to.IsZero():
		return "all time"
	case to.IsZero():
		return fmt.Sprintf("since %s", from.Format(dateLayout))
	case from.IsZero():
		return fmt.Sprintf("before %s", to.Format(dateLayout))
	}
	return fmt.Sprintf("%s to %s", from.Format(dateLayout), to.Format(dateLayout))
}
