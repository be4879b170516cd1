package app

import (
	"time"

	"fitquiz-assignment-service/internal/domain"
)

var unitMultipliers = map[domain.DelayUnit]time.Duration{
	domain.UnitSeconds: time.Second,
	domain.UnitMinutes: time.Minute,
	domain.UnitHours:   time.Hour,
	domain.UnitDays:    24 * time.Hour,
	domain.UnitWeeks:   7 * 24 * time.Hour,
}

// ComputeDelay converts a trigger delay into a duration. Unknown units are
// treated as days; a non-positive amount means no delay.
func ComputeDelay(amount int, unit domain.DelayUnit) time.Duration {
	if amount <= 0 {
		return 0
	}
	multiplier, ok := unitMultipliers[unit]
	if !ok {
		multiplier = unitMultipliers[domain.UnitDays]
	}
	return time.Duration(amount) * multiplier
}

// ComputeDelayMs is ComputeDelay in milliseconds.
func ComputeDelayMs(amount int, unit domain.DelayUnit) int64 {
	return ComputeDelay(amount, unit).Milliseconds()
}

// QuizDelay returns the configured trigger delay of quiz. The legacy
// TriggerDelayDays field is used when no amount is set.
func QuizDelay(quiz *domain.Quiz) time.Duration {
	if quiz.TriggerDelayAmount == nil {
		return ComputeDelay(quiz.TriggerDelayDays, domain.UnitDays)
	}
	unit := quiz.TriggerDelayUnit
	if unit == "" {
		unit = domain.UnitDays
	}
	return ComputeDelay(*quiz.TriggerDelayAmount, unit)
}

// ResolveReferenceDate returns the anchor the trigger delay is measured from.
// Users without results fall back to their registration date.
func ResolveReferenceDate(user *domain.User, from domain.StartFrom) time.Time {
	switch from {
	case domain.StartFromFirstQuiz:
		if first, ok := submittedBound(user, func(a, b time.Time) bool { return a.Before(b) }); ok {
			return first
		}
	case domain.StartFromLastQuiz:
		if last, ok := submittedBound(user, func(a, b time.Time) bool { return a.After(b) }); ok {
			return last
		}
	}
	return user.CreatedAt
}

func submittedBound(user *domain.User, better func(a, b time.Time) bool) (time.Time, bool) {
	var bound time.Time
	found := false
	for _, r := range user.QuizResults {
		if r.SubmittedAt.IsZero() {
			continue
		}
		if !found || better(r.SubmittedAt, bound) {
			bound = r.SubmittedAt
			found = true
		}
	}
	return bound, found
}

// TriggerDate is the moment a time-interval quiz becomes due for user.
func TriggerDate(user *domain.User, quiz *domain.Quiz) time.Time {
	return ResolveReferenceDate(user, quiz.TriggerStartFrom).Add(QuizDelay(quiz))
}
