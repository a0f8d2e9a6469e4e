package task

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/minutemate/minutemate/engine/directory"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

var absoluteLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var (
	inPeriodRe  = regexp.MustCompile(`^in (\d{1,3}|a|an|one|two|three) (day|days|week|weeks)$`)
	leadWordsRe = regexp.MustCompile(`^(by|due|on|before|until)\s+`)
)

var smallNumbers = map[string]int{"a": 1, "an": 1, "one": 1, "two": 2, "three": 3}

// ParseDue resolves a due-date phrase against the reference date. It returns
// false for anything it cannot interpret.
func ParseDue(raw string, ref time.Time) (Date, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	today := DateOf(ref)
	phrase := directory.Fold(strings.Trim(s, " .!,"))
	phrase = leadWordsRe.ReplaceAllString(phrase, "")
	switch phrase {
	case "today", "eod", "end of day", "end of the day", "tonight":
		return today, true
	case "tomorrow", "tmrw":
		return today.AddDays(1), true
	case "end of week", "end of the week", "eow", "this week":
		return onOrAfter(today, time.Friday), true
	case "next week":
		return strictlyAfter(today, time.Monday), true
	case "end of month", "end of the month", "eom":
		first := NewDate(today.Year(), today.Month(), 1)
		return Date{first.AddDate(0, 1, -1)}, true
	}
	if m := inPeriodRe.FindStringSubmatch(phrase); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDays(n), true
	}
	if rest, ok := strings.CutPrefix(phrase, "next "); ok {
		if wd, ok := weekdays[rest]; ok {
			return strictlyAfter(today, wd), true
		}
		return Date{}, false
	}
	if rest, ok := strings.CutPrefix(phrase, "this "); ok {
		phrase = rest
	}
	if wd, ok := weekdays[phrase]; ok {
		return onOrAfter(today, wd), true
	}
	return Date{}, false
}

func onOrAfter(d Date, wd time.Weekday) Date {
	return d.AddDays((int(wd) - int(d.Weekday()) + 7) % 7)
}

func strictlyAfter(d Date, wd time.Weekday) Date {
	days := (int(wd) - int(d.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return d.AddDays(days)
}
