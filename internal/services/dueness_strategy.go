// Package services provides business logic and orchestration services.
//
// This file implements the dueness check for recurring rules as a strategy
// per frequency: each frequency type (daily, weekly, monthly, yearly) has
// its own checker encapsulating when a rule should run again.

package services

import (
	"fmt"
	"time"

	"tally/internal/core"
)

// DuenessChecker is the strategy interface for deciding whether a recurring
// rule is due. Each implementation encapsulates the algorithm for one
// frequency.
type DuenessChecker interface {
	// IsDue returns true if the rule should materialize an entry given when
	// it last ran and the current time.
	IsDue(lastRun, now time.Time, startDate core.Date) bool
}

// DailyChecker implements DuenessChecker for daily rules.
type DailyChecker struct{}

// IsDue returns true if the rule last ran before today.
func (DailyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	lastDate := lastRun.Format("2006-01-02")
	nowDate := now.Format("2006-01-02")
	return lastDate != nowDate
}

// WeeklyChecker implements DuenessChecker for weekly rules.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since the last run.
func (WeeklyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	daysSince := now.Sub(lastRun).Hours() / 24
	return daysSince >= 7
}

// MonthlyChecker implements DuenessChecker for monthly rules.
type MonthlyChecker struct{}

// IsDue returns true if we're in a new month and have reached the target day.
func (MonthlyChecker) IsDue(lastRun, now time.Time, startDate core.Date) bool {
	if lastRun.IsZero() {
		return true
	}

	// Already ran this month?
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}

	// The target day comes from the start date; when the current month is
	// shorter (a rule anchored on the 31st hitting February), the last day
	// of the month stands in.
	targetDay := startDate.Day()
	targetDayThisMonth := targetDay
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDayThisMonth = lastDayOfMonth
	}

	return now.Day() >= targetDayThisMonth
}

// YearlyChecker implements DuenessChecker for yearly rules.
type YearlyChecker struct{}

// IsDue returns true if we're in a new year and have reached the target
// month and day.
func (YearlyChecker) IsDue(lastRun, now time.Time, startDate core.Date) bool {
	if lastRun.IsZero() {
		return true
	}

	// Already ran this year?
	if lastRun.Year() == now.Year() {
		return false
	}

	targetMonth := startDate.Month()
	targetDay := startDate.Day()

	if int(now.Month()) < targetMonth {
		return false
	}

	if int(now.Month()) == targetMonth {
		lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		targetDayThisMonth := targetDay
		if targetDay > lastDayOfMonth {
			targetDayThisMonth = lastDayOfMonth
		}
		return now.Day() >= targetDayThisMonth
	}

	// We're past the target month
	return true
}

// duenessStrategies maps frequencies to their corresponding checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency, or an error when
// the frequency is not supported.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a custom checker for a new frequency
// without touching the built-in ones.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
