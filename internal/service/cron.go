package service

import (
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
)

// tryParseCronInterval recognizes the supplemented cron-expression form of
// an interval value (SPEC_FULL §4.1.1): a standard 5-field cron expression
// or one of cronexpr's "@yearly"-style macros. It returns the duration
// until the expression's next occurrence from now, purely so callers can
// tell cron syntax apart from the legacy keyword/seconds syntax; the
// authoritative scheduling decision still re-evaluates the expression at
// each tick rather than relying on this one-shot duration.
func tryParseCronInterval(raw string) (time.Duration, error) {
	expr, err := cronexpr.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("service: not a cron expression: %w", err)
	}
	next := expr.Next(referenceNow())
	if next.IsZero() {
		return 0, fmt.Errorf("service: cron expression %q has no future occurrence", raw)
	}
	return next.Sub(referenceNow()), nil
}

// NextCronOccurrence returns the next time a service's cron-form interval
// should fire, used by the supervisor loop instead of the fixed
// start_time+interval arithmetic when IntervalCron is set.
func NextCronOccurrence(cronExpr string, after time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("service: invalid cron expression %q: %w", cronExpr, err)
	}
	return expr.Next(after), nil
}

// referenceNow exists only so tryParseCronInterval has a single call site
// to evaluate "now" against during load-time validation.
func referenceNow() time.Time { return time.Now() }
