// Package ops implements the three guest-callable op groups: prelude,
// event, and instance-control. Each is a
// workerfactory.OpGroup, installed into a fresh Runtime by
// workerfactory.Build.
package ops

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// RegisterPrelude installs host-utility functions: logging (hostLog), the
// current Unix time (hostNowUnix), and a cron-expression matcher
// (cronMatches) adapted from a cron.go so macro authors can gate behavior
// on a schedule without this subsystem itself driving one. No sleep op is
// installed.
func RegisterPrelude(rt jsengine.Runtime, _ workerfactory.Permissions) error {
	if err := rt.RegisterFunc("hostLog", func(msg string) {
		log.Printf("macro: %s", msg)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("hostNowUnix", func() int {
		return int(time.Now().Unix())
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("cronMatches", func(expr string) (bool, error) {
		if err := validateCron(expr); err != nil {
			return false, err
		}
		return cronMatches(expr, time.Now()), nil
	}); err != nil {
		return err
	}

	return nil
}

// cronMatches checks a standard 5-field cron expression (minute hour
// day-of-month month day-of-week) against t. Adapted from a cron.go
// cronMatches/fieldMatches pair.
func cronMatches(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}

	values := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, field := range fields {
		if !fieldMatches(field, values[i]) {
			return false
		}
	}
	return true
}

func fieldMatches(field string, value int) bool {
	if field == "*" {
		return true
	}
	if strings.HasPrefix(field, "*/") {
		step, err := strconv.Atoi(field[2:])
		if err != nil || step <= 0 {
			return false
		}
		return value%step == 0
	}
	for _, part := range strings.Split(field, ",") {
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			low, err1 := strconv.Atoi(bounds[0])
			high, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				continue
			}
			if value >= low && value <= high {
				return true
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		if n == value {
			return true
		}
	}
	return false
}

// validateCron mirrors a ValidateCron field-count/range check.
func validateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return errInvalidCron("expression must have exactly 5 fields (minute hour day month weekday)")
	}
	limits := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	for i, field := range fields {
		if field == "*" || strings.HasPrefix(field, "*/") {
			continue
		}
		for _, part := range strings.Split(field, ",") {
			var nums []string
			if strings.Contains(part, "-") {
				nums = strings.SplitN(part, "-", 2)
			} else {
				nums = []string{part}
			}
			for _, n := range nums {
				v, err := strconv.Atoi(n)
				if err != nil {
					return errInvalidCron("field " + strconv.Itoa(i) + " is not numeric: " + n)
				}
				if v < limits[i][0] || v > limits[i][1] {
					return errInvalidCron("field " + strconv.Itoa(i) + " value out of range: " + n)
				}
			}
		}
	}
	return nil
}

type cronError string

func (e cronError) Error() string { return string(e) }
func errInvalidCron(msg string) error { return cronError("invalid cron expression: " + msg) }
